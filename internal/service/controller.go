package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/modasir321/coastline-analysis/internal/backend"
)

// User-facing messages for failures that carry no backend text.
const (
	MsgBaselineFailed = "Failed to load baseline coastline data"
	MsgExportFailed   = "Failed to download change data"
	MsgUploadFailed   = "Failed to upload shapefile"
)

// ExportFilename is the name the change archive is saved under.
const ExportFilename = "coastline_changes.zip"

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 2 * time.Minute

var (
	// ErrAnalysisInFlight rejects an analysis while another one is pending.
	ErrAnalysisInFlight = errors.New("an analysis request is already in progress")
	// ErrNoChangeData rejects an export before any analysis has loaded.
	ErrNoChangeData = errors.New("no change data to export")
)

// Backend is the subset of the analysis service the controller uses.
type Backend interface {
	GetBaseline(ctx context.Context) (*geojson.FeatureCollection, error)
	GetMapData(ctx context.Context, req backend.MapDataRequest) (*backend.MapDataResponse, error)
	GetAnalysis(ctx context.Context, endDate string) (*backend.AnalysisResponse, error)
	DownloadChangeData(ctx context.Context, payload any) ([]byte, error)
	UploadShapefile(ctx context.Context, filename string, r io.Reader) (*geojson.FeatureCollection, error)
}

// ControllerConfig holds the controller settings.
type ControllerConfig struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Controller issues backend requests and feeds the results into the store.
// Its only state is the in-flight marker.
type Controller struct {
	store    *Store
	backend  Backend
	selector *DateRangeSelector
	timeout  time.Duration
	logger   *slog.Logger

	// mu orders claiming and releasing the in-flight marker with the store
	// mutations that go with it.
	mu           sync.Mutex
	inFlight     atomic.Bool
	baselineOnce sync.Once
	baselineErr  error
	pending      sync.WaitGroup
}

// NewController creates a controller writing into store.
func NewController(store *Store, be Backend, selector *DateRangeSelector, cfg ControllerConfig) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		store:    store,
		backend:  be,
		selector: selector,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// Selector returns the date validator in use.
func (c *Controller) Selector() *DateRangeSelector {
	return c.selector
}

// InFlight reports whether an analysis request is pending.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// LoadBaseline fetches the reference coastline. Only the first call does
// any work; later calls return the first call's result.
func (c *Controller) LoadBaseline(ctx context.Context) error {
	c.baselineOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		fc, err := c.backend.GetBaseline(ctx)
		if err != nil {
			c.logger.Error("baseline load failed", "err", err)
			c.store.ReportError(MsgBaselineFailed)
			c.baselineErr = fmt.Errorf("loading baseline: %w", err)
			return
		}
		c.logger.Info("baseline loaded", "features", len(fc.Features))
		c.store.SetBaseline(fc)
	})
	return c.baselineErr
}

// RequestAnalysis validates the window, runs exactly one backend call and
// waits for it. Validation failures and overlapping calls never reach the network.
func (c *Controller) RequestAnalysis(ctx context.Context, start, end string) error {
	req, id, err := c.begin(start, end)
	if err != nil {
		return err
	}
	return c.run(ctx, req, id)
}

// SubmitAnalysis performs the same checks as RequestAnalysis synchronously
// and then runs the request in the background. It returns the request id.
func (c *Controller) SubmitAnalysis(ctx context.Context, start, end string) (string, error) {
	req, id, err := c.begin(start, end)
	if err != nil {
		return "", err
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		_ = c.run(context.WithoutCancel(ctx), req, id)
	}()
	return id, nil
}

// Wait blocks until background analyses have finished.
func (c *Controller) Wait() {
	c.pending.Wait()
}

// begin claims the in-flight slot, validates, and flips the store to loading.
func (c *Controller) begin(start, end string) (AnalysisRequest, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inFlight.CompareAndSwap(false, true) {
		return AnalysisRequest{}, "", ErrAnalysisInFlight
	}

	req, err := c.selector.Validate(start, end)
	if err != nil {
		c.inFlight.Store(false)
		c.store.SetError(err.Error())
		return AnalysisRequest{}, "", err
	}

	c.store.SetLoading(true)
	return req, uuid.NewString(), nil
}

func (c *Controller) run(ctx context.Context, req AnalysisRequest, id string) error {
	final := func() { c.store.SetLoading(false) }
	defer func() { c.settle(final) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := c.logger.With("request", id, "mode", req.Mode, "end", req.EndDate())
	if req.HasStart() {
		log = log.With("start", req.StartDate())
	}
	log.Info("analysis requested")
	began := time.Now()

	result, err := c.fetch(ctx, req)
	if err != nil {
		msg, ok := backend.Message(err)
		if !ok {
			msg = c.selector.FallbackMessage()
		}
		log.Error("analysis failed", "err", err, "duration", time.Since(began))
		final = func() { c.store.SetError(msg) }
		return fmt.Errorf("analysis %s: %w", id, err)
	}

	log.Info("analysis loaded", "duration", time.Since(began))
	final = func() { c.store.mergeAnalysisResult(result, id) }
	return nil
}

// settle releases the in-flight marker and applies the request's last store
// mutation as one step, so a subscriber that sees loading end can submit again.
func (c *Controller) settle(final func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight.Store(false)
	final()
}

func (c *Controller) fetch(ctx context.Context, req AnalysisRequest) (MapData, error) {
	if req.Mode == ModeSnapshot {
		resp, err := c.backend.GetAnalysis(ctx, req.EndDate())
		if err != nil {
			return MapData{}, err
		}
		data := MapData{Comparison: resp.WaterMask}
		if resp.Thumbnail != "" && resp.Bounds != nil {
			data.Raster = &RasterOverlay{ImageURL: resp.Thumbnail, Bounds: *resp.Bounds}
		}
		return data, nil
	}

	resp, err := c.backend.GetMapData(ctx, backend.MapDataRequest{
		StartDate: req.StartDate(),
		EndDate:   req.EndDate(),
	})
	if err != nil {
		return MapData{}, err
	}
	data := MapData{
		StudyArea:  resp.StudyArea,
		Baseline:   resp.WaterBoundaries.Baseline,
		Comparison: resp.WaterBoundaries.Comparison,
		Erosion:    resp.WaterBoundaries.Erosion,
		Accretion:  resp.WaterBoundaries.Accretion,
	}
	if resp.ComparisonImage != "" && resp.Bounds != nil {
		data.Raster = &RasterOverlay{ImageURL: resp.ComparisonImage, Bounds: *resp.Bounds}
	}
	return data, nil
}

// RequestExport downloads the change archive for boundaries and hands it to
// saver. A failure reports the export error and changes nothing else; a
// pending analysis keeps its loading state.
func (c *Controller) RequestExport(ctx context.Context, boundaries WaterBoundaries, saver Saver) (string, error) {
	if boundaries.Comparison == nil && boundaries.Erosion == nil && boundaries.Accretion == nil {
		return "", ErrNoChangeData
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.backend.DownloadChangeData(ctx, boundaries)
	if err == nil {
		var location string
		location, err = saver.Save(ExportFilename, data)
		if err == nil {
			c.logger.Info("change data exported", "location", location, "bytes", len(data))
			return location, nil
		}
	}

	c.logger.Error("export failed", "err", err)
	c.store.ReportError(MsgExportFailed)
	return "", fmt.Errorf("exporting change data: %w", err)
}
