// Package service holds the client-side map state of the coastline analyzer:
// the state store, the request controller, date validation and uploads.
package service

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// BaseLayer selects what is drawn beneath the study-area outline.
type BaseLayer string

const (
	BaseLayerChange    BaseLayer = "change"
	BaseLayerSatellite BaseLayer = "satellite"
)

// Valid reports whether b is a known base layer.
func (b BaseLayer) Valid() bool {
	return b == BaseLayerChange || b == BaseLayerSatellite
}

// Period selects which coastline periods are visible in change mode.
type Period string

const (
	PeriodBaseline   Period = "baseline"
	PeriodComparison Period = "comparison"
	PeriodBoth       Period = "both"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == PeriodBaseline || p == PeriodComparison || p == PeriodBoth
}

// Shows reports whether the given single period is visible under p.
func (p Period) Shows(single Period) bool {
	return p == PeriodBoth || p == single
}

// RasterOverlay is a georeferenced image drawn under the vector layers.
type RasterOverlay struct {
	ImageURL string    `json:"imageUrl" doc:"URL of the overlay image"`
	Bounds   orb.Bound `json:"-"`
}

// MapData is everything the map can draw. A nil collection means "not loaded",
// which is different from a loaded collection with no features.
type MapData struct {
	StudyArea  *geojson.FeatureCollection
	Baseline   *geojson.FeatureCollection
	Comparison *geojson.FeatureCollection
	Erosion    *geojson.FeatureCollection
	Accretion  *geojson.FeatureCollection
	Raster     *RasterOverlay
}

// HasChangeData reports whether any analysis-derived layer is loaded.
func (d MapData) HasChangeData() bool {
	return d.Comparison != nil || d.Erosion != nil || d.Accretion != nil
}

// WaterBoundaries returns the change layers in the shape the export endpoint expects.
func (d MapData) WaterBoundaries() WaterBoundaries {
	return WaterBoundaries{
		Baseline:   d.Baseline,
		Comparison: d.Comparison,
		Erosion:    d.Erosion,
		Accretion:  d.Accretion,
	}
}

// WaterBoundaries groups the coastline and change collections.
type WaterBoundaries struct {
	Baseline   *geojson.FeatureCollection `json:"baseline"`
	Comparison *geojson.FeatureCollection `json:"comparison"`
	Erosion    *geojson.FeatureCollection `json:"erosion"`
	Accretion  *geojson.FeatureCollection `json:"accretion"`
}

// UIState holds the user toggles and request status.
type UIState struct {
	BaseLayer BaseLayer `json:"baseLayer" enum:"change,satellite" doc:"Active base layer"`
	Period    Period    `json:"period" enum:"baseline,comparison,both" doc:"Visible coastline period"`
	Loading   bool      `json:"loading" doc:"Whether an analysis request is pending"`
	Error     string    `json:"error,omitempty" doc:"User-facing error message"`
}

// DefaultUIState is the state at mount.
func DefaultUIState() UIState {
	return UIState{BaseLayer: BaseLayerChange, Period: PeriodBoth}
}

// Snapshot is a consistent copy of the store contents.
type Snapshot struct {
	Data MapData
	UI   UIState
}
