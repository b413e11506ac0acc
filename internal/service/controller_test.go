package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/modasir321/coastline-analysis/internal/backend"
	"github.com/modasir321/coastline-analysis/internal/service/servicetest"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestController(t *testing.T, mode Mode, be Backend) (*Controller, *Store) {
	t.Helper()
	store := NewStore()
	c := NewController(store, be, fixedSelector(t, mode), ControllerConfig{Logger: quietLogger})
	return c, store
}

func TestRequestAnalysisSuccess(t *testing.T) {
	be := &servicetest.Backend{}
	c, store := newTestController(t, ModeRange, be)

	if err := c.RequestAnalysis(context.Background(), "2022-06-30", "2023-06-30"); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}

	if n := be.Calls("GetMapData"); n != 1 {
		t.Fatalf("GetMapData called %d times", n)
	}
	req := be.Last("GetMapData").(backend.MapDataRequest)
	if req.StartDate != "2022-06-30" || req.EndDate != "2023-06-30" {
		t.Fatalf("request = %+v", req)
	}

	snap := store.Snapshot()
	if snap.UI.Loading || snap.UI.Error != "" {
		t.Fatalf("UI = %+v", snap.UI)
	}
	if snap.Data.Comparison == nil || len(snap.Data.Comparison.Features) != 2 {
		t.Fatalf("comparison = %v", snap.Data.Comparison)
	}
	if c.InFlight() {
		t.Fatal("in-flight marker not released")
	}
}

func TestRequestAnalysisEndDateMode(t *testing.T) {
	be := &servicetest.Backend{}
	c, _ := newTestController(t, ModeEndDate, be)

	if err := c.RequestAnalysis(context.Background(), "", "2023-06-30"); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	req := be.Last("GetMapData").(backend.MapDataRequest)
	if req.StartDate != "" || req.EndDate != "2023-06-30" {
		t.Fatalf("request = %+v", req)
	}
}

func TestRequestAnalysisValidationSkipsNetwork(t *testing.T) {
	be := &servicetest.Backend{}
	c, store := newTestController(t, ModeRange, be)

	err := c.RequestAnalysis(context.Background(), "2023-07-01", "2023-06-30")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if be.TotalCalls() != 0 {
		t.Fatalf("backend called %d times", be.TotalCalls())
	}
	if ui := store.Snapshot().UI; ui.Error != verr.Message || ui.Loading {
		t.Fatalf("UI = %+v", ui)
	}
	if c.InFlight() {
		t.Fatal("validation failure left the in-flight marker set")
	}
}

func TestRequestAnalysisBackendMessage(t *testing.T) {
	be := &servicetest.Backend{
		MapDataFunc: func(ctx context.Context, req backend.MapDataRequest) (*backend.MapDataResponse, error) {
			return nil, &backend.APIError{Status: 400, Message: "No imagery available for the selected dates"}
		},
	}
	c, store := newTestController(t, ModeRange, be)
	store.MergeAnalysisResult(MapData{Comparison: servicetest.Lines(1)})
	before := store.Snapshot().Data

	if err := c.RequestAnalysis(context.Background(), "2022-06-30", "2023-06-30"); err == nil {
		t.Fatal("expected error")
	}

	snap := store.Snapshot()
	if snap.UI.Error != "No imagery available for the selected dates" || snap.UI.Loading {
		t.Fatalf("UI = %+v", snap.UI)
	}
	if snap.Data != before {
		t.Fatal("failed analysis changed map data")
	}
}

func TestRequestAnalysisTransportFailure(t *testing.T) {
	be := &servicetest.Backend{
		MapDataFunc: func(ctx context.Context, req backend.MapDataRequest) (*backend.MapDataResponse, error) {
			return nil, errors.New("connection refused")
		},
	}
	c, store := newTestController(t, ModeRange, be)

	_ = c.RequestAnalysis(context.Background(), "2022-06-30", "2023-06-30")

	if got := store.Snapshot().UI.Error; got != "Analysis failed. Try dates between 2017-01-01 and today" {
		t.Fatalf("error = %q", got)
	}
}

func TestRequestAnalysisTimeout(t *testing.T) {
	be := &servicetest.Backend{
		MapDataFunc: func(ctx context.Context, req backend.MapDataRequest) (*backend.MapDataResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	store := NewStore()
	c := NewController(store, be, fixedSelector(t, ModeRange), ControllerConfig{
		Timeout: 20 * time.Millisecond,
		Logger:  quietLogger,
	})

	err := c.RequestAnalysis(context.Background(), "2022-06-30", "2023-06-30")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if ui := store.Snapshot().UI; ui.Loading || ui.Error != c.Selector().FallbackMessage() {
		t.Fatalf("UI = %+v", ui)
	}
}

func TestSingleAnalysisInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	be := &servicetest.Backend{
		MapDataFunc: func(ctx context.Context, req backend.MapDataRequest) (*backend.MapDataResponse, error) {
			close(started)
			<-release
			return &backend.MapDataResponse{WaterBoundaries: backend.WaterBoundaries{Comparison: servicetest.Lines(1)}}, nil
		},
	}
	c, store := newTestController(t, ModeRange, be)

	id, err := c.SubmitAnalysis(context.Background(), "2022-06-30", "2023-06-30")
	if err != nil || id == "" {
		t.Fatalf("SubmitAnalysis = %q, %v", id, err)
	}
	<-started

	if !store.Snapshot().UI.Loading || !c.InFlight() {
		t.Fatal("pending analysis is not marked loading")
	}
	if err := c.RequestAnalysis(context.Background(), "2022-06-30", "2023-06-30"); !errors.Is(err, ErrAnalysisInFlight) {
		t.Fatalf("second request err = %v", err)
	}
	if _, err := c.SubmitAnalysis(context.Background(), "bad", "dates"); !errors.Is(err, ErrAnalysisInFlight) {
		t.Fatalf("overlapping invalid request err = %v", err)
	}
	if ui := store.Snapshot().UI; !ui.Loading || ui.Error != "" {
		t.Fatalf("rejected request touched state: %+v", ui)
	}

	close(release)
	c.Wait()

	if n := be.Calls("GetMapData"); n != 1 {
		t.Fatalf("GetMapData called %d times", n)
	}
	if store.Snapshot().UI.Loading || c.InFlight() {
		t.Fatal("loading not cleared after completion")
	}
}

func TestSnapshotModeUsesAnalysisEndpoint(t *testing.T) {
	be := &servicetest.Backend{}
	c, store := newTestController(t, ModeSnapshot, be)

	if err := c.RequestAnalysis(context.Background(), "", "2023-06-30"); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if be.Calls("GetAnalysis") != 1 || be.Calls("GetMapData") != 0 {
		t.Fatal("snapshot mode did not use /get-analysis")
	}
	if got := be.Last("GetAnalysis").(string); got != "2023-06-30" {
		t.Fatalf("end date = %q", got)
	}

	data := store.Snapshot().Data
	if data.Raster == nil || data.Raster.ImageURL != "https://example.com/thumb.png" {
		t.Fatalf("raster = %+v", data.Raster)
	}
	if data.Comparison == nil {
		t.Fatal("water mask not stored as comparison")
	}
}

func TestLoadBaselineOnce(t *testing.T) {
	be := &servicetest.Backend{}
	c, store := newTestController(t, ModeRange, be)

	for i := 0; i < 3; i++ {
		if err := c.LoadBaseline(context.Background()); err != nil {
			t.Fatalf("LoadBaseline: %v", err)
		}
	}
	if n := be.Calls("GetBaseline"); n != 1 {
		t.Fatalf("GetBaseline called %d times", n)
	}
	if store.Snapshot().Data.Baseline == nil {
		t.Fatal("baseline not stored")
	}
}

func TestLoadBaselineFailure(t *testing.T) {
	be := &servicetest.Backend{
		BaselineFunc: func(ctx context.Context) (*geojson.FeatureCollection, error) {
			return nil, errors.New("unreachable")
		},
	}
	c, store := newTestController(t, ModeRange, be)

	if err := c.LoadBaseline(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	snap := store.Snapshot()
	if snap.UI.Error != MsgBaselineFailed || snap.Data.Baseline != nil {
		t.Fatalf("snapshot = %+v", snap)
	}

	if err := c.RequestAnalysis(context.Background(), "2022-06-30", "2023-06-30"); err != nil {
		t.Fatalf("analysis after baseline failure: %v", err)
	}
	if store.Snapshot().UI.Error != "" {
		t.Fatal("successful analysis did not clear the baseline error")
	}
}

func TestRequestExport(t *testing.T) {
	be := &servicetest.Backend{}
	c, store := newTestController(t, ModeRange, be)

	saver := SaverFunc(func(name string, data []byte) (string, error) {
		t.Fatal("saver called without change data")
		return "", nil
	})
	if _, err := c.RequestExport(context.Background(), store.Snapshot().Data.WaterBoundaries(), saver); !errors.Is(err, ErrNoChangeData) {
		t.Fatalf("err = %v, want ErrNoChangeData", err)
	}
	if be.TotalCalls() != 0 {
		t.Fatal("export without data reached the backend")
	}

	if err := c.RequestAnalysis(context.Background(), "2022-06-30", "2023-06-30"); err != nil {
		t.Fatal(err)
	}

	var savedName string
	var saved []byte
	saver = func(name string, data []byte) (string, error) {
		savedName, saved = name, data
		return "/tmp/" + name, nil
	}
	loc, err := c.RequestExport(context.Background(), store.Snapshot().Data.WaterBoundaries(), saver)
	if err != nil {
		t.Fatalf("RequestExport: %v", err)
	}
	if savedName != ExportFilename || loc != "/tmp/coastline_changes.zip" || len(saved) == 0 {
		t.Fatalf("saved %q at %q (%d bytes)", savedName, loc, len(saved))
	}
	if _, ok := be.Last("DownloadChangeData").(WaterBoundaries); !ok {
		t.Fatalf("payload = %T", be.Last("DownloadChangeData"))
	}
}

func TestRequestExportFailure(t *testing.T) {
	be := &servicetest.Backend{
		DownloadFunc: func(ctx context.Context, payload any) ([]byte, error) {
			return nil, &backend.APIError{Status: 500}
		},
	}
	c, store := newTestController(t, ModeRange, be)
	store.MergeAnalysisResult(MapData{Erosion: servicetest.Squares(1)})
	before := store.Snapshot().Data

	_, err := c.RequestExport(context.Background(), before.WaterBoundaries(), DirSaver{Dir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error")
	}
	snap := store.Snapshot()
	if snap.UI.Error != MsgExportFailed {
		t.Fatalf("error = %q", snap.UI.Error)
	}
	if snap.Data != before {
		t.Fatal("export failure changed map data")
	}
}

func TestExportFailureKeepsAnalysisLoading(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	be := &servicetest.Backend{
		MapDataFunc: func(ctx context.Context, req backend.MapDataRequest) (*backend.MapDataResponse, error) {
			close(started)
			<-release
			return &backend.MapDataResponse{WaterBoundaries: backend.WaterBoundaries{Comparison: servicetest.Lines(1)}}, nil
		},
		DownloadFunc: func(ctx context.Context, payload any) ([]byte, error) {
			return nil, &backend.APIError{Status: 500}
		},
	}
	c, store := newTestController(t, ModeRange, be)
	store.MergeAnalysisResult(MapData{Erosion: servicetest.Squares(1)})

	if _, err := c.SubmitAnalysis(context.Background(), "2022-06-30", "2023-06-30"); err != nil {
		t.Fatal(err)
	}
	<-started

	if _, err := c.RequestExport(context.Background(), store.Snapshot().Data.WaterBoundaries(), DirSaver{Dir: t.TempDir()}); err == nil {
		t.Fatal("expected export error")
	}
	if ui := store.Snapshot().UI; !ui.Loading || ui.Error != "" || !c.InFlight() {
		t.Fatalf("export failure interrupted the pending analysis: %+v", ui)
	}

	close(release)
	c.Wait()
	if ui := store.Snapshot().UI; ui.Loading || ui.Error != "" {
		t.Fatalf("after analysis: %+v", ui)
	}
}

func TestResubmitWhenLoadingEnds(t *testing.T) {
	be := &servicetest.Backend{}
	c, store := newTestController(t, ModeRange, be)
	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	if _, err := c.SubmitAnalysis(context.Background(), "2022-06-30", "2023-06-30"); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Action != "analysis" {
				continue
			}
			if store.Snapshot().UI.Loading {
				t.Fatal("loading still set after the analysis result")
			}
			if _, err := c.SubmitAnalysis(context.Background(), "2022-06-30", "2023-06-30"); err != nil {
				t.Fatalf("resubmit after loading ended: %v", err)
			}
			c.Wait()
			if n := be.Calls("GetMapData"); n != 2 {
				t.Fatalf("GetMapData called %d times", n)
			}
			return
		case <-timeout:
			t.Fatal("no analysis event")
		}
	}
}
