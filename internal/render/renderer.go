// Package render turns map state into the ordered list of layers the map
// surface draws.
//
// Rendering is pure: the same MapData and UIState always produce the same
// layers, and the input collections are never modified. Geometries are
// simplified for display with paulmach/orb; a feature whose simplification
// fails is drawn unsimplified without affecting its neighbours.
package render

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/modasir321/coastline-analysis/internal/service"
)

// DefaultTolerance is the simplification tolerance in degrees.
const DefaultTolerance = 0.001

// Simplifier reduces the vertex count of a geometry. It may modify its
// input in place.
type Simplifier interface {
	Simplify(g orb.Geometry) orb.Geometry
}

// Layer is one drawable map layer.
type Layer struct {
	ID       string                     `json:"id" doc:"Layer identifier" example:"erosion"`
	Kind     Kind                       `json:"kind" doc:"Layer slot"`
	Style    Style                      `json:"style" doc:"Leaflet path style"`
	Features *geojson.FeatureCollection `json:"features,omitempty" doc:"Simplified GeoJSON features"`
	Raster   *Raster                    `json:"raster,omitempty" doc:"Image overlay"`
}

// Raster is an image overlay with Leaflet-style [[lat,lng],[lat,lng]] bounds.
type Raster struct {
	URL    string       `json:"url" doc:"Overlay image URL"`
	Bounds [2][2]float64 `json:"bounds" doc:"South-west and north-east corners as [lat, lng]"`
}

// Renderer maps state to layers.
type Renderer struct {
	simplifier Simplifier
	logger     *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSimplifier replaces the Douglas-Peucker simplifier.
func WithSimplifier(s Simplifier) Option {
	return func(r *Renderer) { r.simplifier = s }
}

// WithLogger sets the logger used to report simplification fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a renderer simplifying with the given tolerance in degrees.
// A non-positive tolerance disables simplification.
func New(tolerance float64, opts ...Option) *Renderer {
	r := &Renderer{logger: slog.Default()}
	if tolerance > 0 {
		r.simplifier = simplify.DouglasPeucker(tolerance)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render returns the layers to draw, bottom first.
func (r *Renderer) Render(data service.MapData, ui service.UIState) []Layer {
	var layers []Layer

	switch ui.BaseLayer {
	case service.BaseLayerSatellite:
		if data.Raster != nil {
			layers = append(layers, rasterLayer(data.Raster))
		}

	default:
		if data.Baseline != nil && ui.Period.Shows(service.PeriodBaseline) {
			layers = append(layers, r.vectorLayer(KindBaseline, data.Baseline))
		}
		if data.Comparison != nil && ui.Period.Shows(service.PeriodComparison) {
			layers = append(layers, r.vectorLayer(KindComparison, data.Comparison))
		}
		if data.Erosion != nil {
			layers = append(layers, r.vectorLayer(KindErosion, data.Erosion))
		}
		if data.Accretion != nil {
			layers = append(layers, r.vectorLayer(KindAccretion, data.Accretion))
		}
	}

	if data.StudyArea != nil {
		layers = append(layers, r.vectorLayer(KindStudyArea, data.StudyArea))
	}
	return layers
}

func rasterLayer(o *service.RasterOverlay) Layer {
	return Layer{
		ID:    string(KindRaster),
		Kind:  KindRaster,
		Style: Styles[KindRaster],
		Raster: &Raster{
			URL: o.ImageURL,
			Bounds: [2][2]float64{
				{o.Bounds.Min.Lat(), o.Bounds.Min.Lon()},
				{o.Bounds.Max.Lat(), o.Bounds.Max.Lon()},
			},
		},
	}
}

func (r *Renderer) vectorLayer(kind Kind, src *geojson.FeatureCollection) Layer {
	out := geojson.NewFeatureCollection()
	for i, f := range src.Features {
		if f == nil {
			continue
		}
		out.Append(r.simplifyFeature(kind, i, f))
	}
	return Layer{
		ID:       string(kind),
		Kind:     kind,
		Style:    Styles[kind],
		Features: out,
	}
}

// simplifyFeature returns a display copy of f. The source feature is left untouched.
func (r *Renderer) simplifyFeature(kind Kind, index int, f *geojson.Feature) *geojson.Feature {
	out := &geojson.Feature{
		ID:         f.ID,
		Type:       f.Type,
		BBox:       f.BBox,
		Geometry:   f.Geometry,
		Properties: f.Properties,
	}
	if r.simplifier == nil || f.Geometry == nil {
		return out
	}

	simplified, err := r.trySimplify(f.Geometry)
	if err != nil {
		r.logger.Warn("geometry simplification failed, drawing original",
			"layer", kind, "feature", index, "err", err)
		return out
	}
	out.Geometry = simplified
	return out
}

// trySimplify simplifies a clone of g and reports a failure for panics and
// degenerate results.
func (r *Renderer) trySimplify(g orb.Geometry) (result orb.Geometry, err error) {
	clone := cloneGeometry(g)
	if clone == nil {
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}

	defer func() {
		if p := recover(); p != nil {
			result, err = nil, fmt.Errorf("simplifier panic: %v", p)
		}
	}()

	result = r.simplifier.Simplify(clone)
	if result == nil {
		return nil, fmt.Errorf("simplifier returned no geometry")
	}
	if degenerate(result) && !degenerate(g) {
		return nil, fmt.Errorf("simplified %s collapsed", g.GeoJSONType())
	}
	return result, nil
}

// degenerate reports whether g can no longer be drawn as its type.
func degenerate(g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.LineString:
		return len(geom) < 2
	case orb.Ring:
		return len(geom) < 4
	case orb.Polygon:
		return len(geom) == 0 || len(geom[0]) < 4
	case orb.MultiLineString:
		return len(geom) == 0
	case orb.MultiPolygon:
		return len(geom) == 0
	case orb.Collection:
		for _, c := range geom {
			if degenerate(c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
