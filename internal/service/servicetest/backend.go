// Package servicetest provides an in-memory analysis backend for tests.
package servicetest

import (
	"context"
	"io"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/modasir321/coastline-analysis/internal/backend"
)

// Backend is a scripted service.Backend. Nil hooks return canned data.
// Every call is counted.
type Backend struct {
	BaselineFunc func(ctx context.Context) (*geojson.FeatureCollection, error)
	MapDataFunc  func(ctx context.Context, req backend.MapDataRequest) (*backend.MapDataResponse, error)
	AnalysisFunc func(ctx context.Context, endDate string) (*backend.AnalysisResponse, error)
	DownloadFunc func(ctx context.Context, payload any) ([]byte, error)
	UploadFunc   func(ctx context.Context, filename string, data []byte) (*geojson.FeatureCollection, error)

	mu    sync.Mutex
	calls map[string]int
	last  map[string]any
}

func (b *Backend) record(name string, arg any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = map[string]int{}
		b.last = map[string]any{}
	}
	b.calls[name]++
	b.last[name] = arg
}

// Calls returns how often the named method ran.
func (b *Backend) Calls(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

// TotalCalls returns the number of backend calls of any kind.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// Last returns the argument of the most recent call to the named method.
func (b *Backend) Last(name string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[name]
}

func (b *Backend) GetBaseline(ctx context.Context) (*geojson.FeatureCollection, error) {
	b.record("GetBaseline", nil)
	if b.BaselineFunc != nil {
		return b.BaselineFunc(ctx)
	}
	return Lines(1), nil
}

func (b *Backend) GetMapData(ctx context.Context, req backend.MapDataRequest) (*backend.MapDataResponse, error) {
	b.record("GetMapData", req)
	if b.MapDataFunc != nil {
		return b.MapDataFunc(ctx, req)
	}
	return &backend.MapDataResponse{
		WaterBoundaries: backend.WaterBoundaries{
			Comparison: Lines(2),
			Erosion:    Squares(1),
			Accretion:  Squares(1),
		},
	}, nil
}

func (b *Backend) GetAnalysis(ctx context.Context, endDate string) (*backend.AnalysisResponse, error) {
	b.record("GetAnalysis", endDate)
	if b.AnalysisFunc != nil {
		return b.AnalysisFunc(ctx, endDate)
	}
	bound := orb.Bound{Min: orb.Point{-1, 50}, Max: orb.Point{1, 51}}
	return &backend.AnalysisResponse{
		Thumbnail: "https://example.com/thumb.png",
		WaterMask: Squares(1),
		Bounds:    &bound,
	}, nil
}

func (b *Backend) DownloadChangeData(ctx context.Context, payload any) ([]byte, error) {
	b.record("DownloadChangeData", payload)
	if b.DownloadFunc != nil {
		return b.DownloadFunc(ctx, payload)
	}
	return []byte("PK\x03\x04archive"), nil
}

func (b *Backend) UploadShapefile(ctx context.Context, filename string, r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b.record("UploadShapefile", filename)
	if b.UploadFunc != nil {
		return b.UploadFunc(ctx, filename, data)
	}
	return Squares(1), nil
}

// Lines returns a collection of n short coastline segments.
func Lines(n int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		x := float64(i)
		fc.Append(geojson.NewFeature(orb.LineString{{x, 50}, {x + 0.5, 50.0001}, {x + 1, 50}}))
	}
	return fc
}

// Squares returns a collection of n 0.01° square polygons.
func Squares(n int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		x := float64(i)
		fc.Append(geojson.NewFeature(orb.Polygon{{{x, 50}, {x + 0.01, 50}, {x + 0.01, 50.01}, {x, 50.01}, {x, 50}}}))
	}
	return fc
}
