package render

import (
	"math"

	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/modasir321/coastline-analysis/internal/service"
)

// Summary describes what is loaded and how much coast changed.
type Summary struct {
	Layers          map[Kind]int `json:"layers" yaml:"layers" doc:"Feature count per loaded layer"`
	ErosionKm2      float64      `json:"erosionKm2" yaml:"erosion_km2" doc:"Geodesic area of erosion polygons in km²"`
	AccretionKm2    float64      `json:"accretionKm2" yaml:"accretion_km2" doc:"Geodesic area of accretion polygons in km²"`
	HasRaster       bool         `json:"hasRaster" yaml:"has_raster" doc:"Whether a satellite overlay is loaded"`
	ComparisonImage string       `json:"comparisonImage,omitempty" yaml:"comparison_image,omitempty" doc:"Overlay image URL"`
}

// Summarize reports feature counts for every loaded layer and the
// erosion/accretion areas. Empty but loaded layers report zero features.
func Summarize(data service.MapData) Summary {
	s := Summary{Layers: map[Kind]int{}}

	add := func(kind Kind, fc *geojson.FeatureCollection) {
		if fc != nil {
			s.Layers[kind] = len(fc.Features)
		}
	}
	add(KindStudyArea, data.StudyArea)
	add(KindBaseline, data.Baseline)
	add(KindComparison, data.Comparison)
	add(KindErosion, data.Erosion)
	add(KindAccretion, data.Accretion)

	s.ErosionKm2 = areaKm2(data.Erosion)
	s.AccretionKm2 = areaKm2(data.Accretion)
	if data.Raster != nil {
		s.HasRaster = true
		s.ComparisonImage = data.Raster.ImageURL
	}
	return s
}

func areaKm2(fc *geojson.FeatureCollection) float64 {
	if fc == nil {
		return 0
	}
	var m2 float64
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		m2 += math.Abs(geo.Area(f.Geometry))
	}
	return m2 / 1e6
}
