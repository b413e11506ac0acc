package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// WaterBoundaries are the coastline and change layers of an analysis.
// A nil collection means the service did not send that layer.
type WaterBoundaries struct {
	Baseline   *geojson.FeatureCollection
	Comparison *geojson.FeatureCollection
	Erosion    *geojson.FeatureCollection
	Accretion  *geojson.FeatureCollection
}

// MapDataResponse is the decoded /get-map-data response.
type MapDataResponse struct {
	WaterBoundaries WaterBoundaries
	StudyArea       *geojson.FeatureCollection
	Bounds          *orb.Bound
	ComparisonImage string
}

type rawBoundaries struct {
	Baseline   json.RawMessage `json:"baseline"`
	Comparison json.RawMessage `json:"comparison"`
	Current    json.RawMessage `json:"current"`
	Erosion    json.RawMessage `json:"erosion"`
	Accretion  json.RawMessage `json:"accretion"`
}

// UnmarshalJSON accepts both the nested shape
// {water_boundaries: {...}, geojson, bounds, comparison_image} and the flat
// shape {baseline, current, erosion, accretion} with bare geometries.
func (r *MapDataResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		WaterBoundaries *rawBoundaries  `json:"water_boundaries"`
		GeoJSON         json.RawMessage `json:"geojson"`
		Bounds          json.RawMessage `json:"bounds"`
		ComparisonImage string          `json:"comparison_image"`
		rawBoundaries
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	layers := raw.rawBoundaries
	if raw.WaterBoundaries != nil {
		layers = *raw.WaterBoundaries
	}
	if len(layers.Comparison) == 0 || isNull(layers.Comparison) {
		layers.Comparison = layers.Current
	}

	var err error
	if r.WaterBoundaries.Baseline, err = decodeLayer("baseline", layers.Baseline); err != nil {
		return err
	}
	if r.WaterBoundaries.Comparison, err = decodeLayer("comparison", layers.Comparison); err != nil {
		return err
	}
	if r.WaterBoundaries.Erosion, err = decodeLayer("erosion", layers.Erosion); err != nil {
		return err
	}
	if r.WaterBoundaries.Accretion, err = decodeLayer("accretion", layers.Accretion); err != nil {
		return err
	}
	if r.StudyArea, err = decodeLayer("geojson", raw.GeoJSON); err != nil {
		return err
	}
	if r.Bounds, err = decodeBounds(raw.Bounds); err != nil {
		return err
	}
	r.ComparisonImage = raw.ComparisonImage
	return nil
}

// AnalysisResponse is the decoded /get-analysis response.
type AnalysisResponse struct {
	Thumbnail string
	WaterMask *geojson.FeatureCollection
	Bounds    *orb.Bound
}

// UnmarshalJSON decodes the thumbnail, water mask and bounds.
func (r *AnalysisResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Thumbnail string          `json:"thumbnail"`
		WaterMask json.RawMessage `json:"water_mask"`
		Bounds    json.RawMessage `json:"bounds"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if r.WaterMask, err = decodeLayer("water_mask", raw.WaterMask); err != nil {
		return err
	}
	if r.Bounds, err = decodeBounds(raw.Bounds); err != nil {
		return err
	}
	r.Thumbnail = raw.Thumbnail
	return nil
}

func decodeLayer(name string, raw json.RawMessage) (*geojson.FeatureCollection, error) {
	fc, err := decodeCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return fc, nil
}

// decodeCollection normalises a FeatureCollection, Feature or bare Geometry
// into a FeatureCollection. Missing or null input yields nil.
func decodeCollection(raw json.RawMessage) (*geojson.FeatureCollection, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case "FeatureCollection":
		return geojson.UnmarshalFeatureCollection(raw)
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, err
		}
		return geojson.NewFeatureCollection().Append(f), nil
	case "":
		return nil, fmt.Errorf("missing geojson type")
	default:
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, err
		}
		return geojson.NewFeatureCollection().Append(geojson.NewFeature(g.Geometry())), nil
	}
}

// decodeBounds converts [[lat, lng], [lat, lng]] into an orb.Bound.
func decodeBounds(raw json.RawMessage) (*orb.Bound, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}

	var corners [][]float64
	if err := json.Unmarshal(raw, &corners); err != nil {
		return nil, fmt.Errorf("decoding bounds: %w", err)
	}
	if len(corners) != 2 || len(corners[0]) < 2 || len(corners[1]) < 2 {
		return nil, fmt.Errorf("decoding bounds: want [[lat,lng],[lat,lng]], got %s", raw)
	}

	b := orb.MultiPoint{
		{corners[0][1], corners[0][0]},
		{corners[1][1], corners[1][0]},
	}.Bound()
	return &b, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
