package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/modasir321/coastline-analysis/internal/backend"
)

// MaxUploadSize caps an uploaded shapefile archive.
const MaxUploadSize = 50 << 20

// ErrUploadInFlight rejects an upload while another one is pending.
var ErrUploadInFlight = errors.New("a shapefile upload is already in progress")

// ShapefileInfo describes a zipped shapefile read locally.
type ShapefileInfo struct {
	Name   string    `json:"name" yaml:"name"`
	Size   string    `json:"size" yaml:"size"`
	Shapes int       `json:"shapes" yaml:"shapes"`
	Fields []string  `json:"fields" yaml:"fields"`
	Bound  orb.Bound `json:"-" yaml:"-"`
	BBox   []float64 `json:"bbox" yaml:"bbox"`
}

// UploadCoordinator sends study-area shapefiles to the backend and relays
// the returned geometry into the store.
type UploadCoordinator struct {
	store    *Store
	backend  Backend
	timeout  time.Duration
	logger   *slog.Logger
	inFlight atomic.Bool
}

// NewUploadCoordinator creates an upload coordinator.
func NewUploadCoordinator(store *Store, be Backend, cfg ControllerConfig) *UploadCoordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &UploadCoordinator{store: store, backend: be, timeout: cfg.Timeout, logger: cfg.Logger}
}

// ValidateFilename checks that name is a plain .zip file name.
func ValidateFilename(name string) error {
	if name == "" {
		return &ValidationError{Field: "file", Message: "Please choose a shapefile to upload"}
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return &ValidationError{Field: "file", Message: "Invalid file name"}
	}
	if strings.ToLower(filepath.Ext(name)) != ".zip" {
		return &ValidationError{Field: "file", Message: "Only zipped shapefiles (.zip) can be uploaded"}
	}
	return nil
}

// Upload sends one zipped shapefile. Invalid names and archives larger than
// MaxUploadSize are rejected without a network call, and overlapping uploads
// return ErrUploadInFlight.
func (u *UploadCoordinator) Upload(ctx context.Context, filename string, r io.Reader) error {
	if err := ValidateFilename(filename); err != nil {
		u.store.ReportError(err.Error())
		return err
	}
	if !u.inFlight.CompareAndSwap(false, true) {
		return ErrUploadInFlight
	}
	defer u.inFlight.Store(false)

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	if len(data) > MaxUploadSize {
		verr := &ValidationError{Field: "file", Message: "Shapefile archive exceeds the " + formatSize(MaxUploadSize) + " upload limit"}
		u.store.ReportError(verr.Error())
		return verr
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	fc, err := u.backend.UploadShapefile(ctx, filename, bytes.NewReader(data))
	if err != nil {
		msg, ok := backend.Message(err)
		if !ok {
			msg = MsgUploadFailed
		}
		u.logger.Error("shapefile upload failed", "file", filename, "err", err)
		u.store.ReportError(msg)
		return fmt.Errorf("uploading %s: %w", filename, err)
	}

	u.logger.Info("study area uploaded", "file", filename, "features", len(fc.Features))
	u.store.SetStudyArea(fc)
	return nil
}

// UploadFile inspects a local archive and uploads it.
func (u *UploadCoordinator) UploadFile(ctx context.Context, path string) (*ShapefileInfo, error) {
	info, err := Inspect(path)
	if err != nil {
		u.store.ReportError(err.Error())
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := u.Upload(ctx, filepath.Base(path), f); err != nil {
		return info, err
	}
	return info, nil
}

// Inspect reads a zipped shapefile locally and reports its shape count,
// attribute fields and bounding box.
func Inspect(path string) (*ShapefileInfo, error) {
	if err := ValidateFilename(filepath.Base(path)); err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	z, err := shp.OpenZip(path)
	if err != nil {
		return nil, &ValidationError{Field: "file", Message: fmt.Sprintf("Not a valid zipped shapefile: %v", err)}
	}
	defer z.Close()

	info := &ShapefileInfo{Name: filepath.Base(path), Size: formatSize(st.Size())}
	for _, f := range z.Fields() {
		info.Fields = append(info.Fields, f.String())
	}

	first := true
	for z.Next() {
		_, shape := z.Shape()
		info.Shapes++
		if shape == nil {
			continue
		}
		if _, null := shape.(*shp.Null); null {
			continue
		}
		box := shape.BBox()
		b := orb.Bound{Min: orb.Point{box.MinX, box.MinY}, Max: orb.Point{box.MaxX, box.MaxY}}
		if first {
			info.Bound, first = b, false
		} else {
			info.Bound = info.Bound.Union(b)
		}
	}
	if err := z.Err(); err != nil {
		return nil, &ValidationError{Field: "file", Message: fmt.Sprintf("Corrupt shapefile: %v", err)}
	}
	if info.Shapes == 0 {
		return nil, &ValidationError{Field: "file", Message: "The shapefile contains no shapes"}
	}

	info.BBox = []float64{info.Bound.Min.Lon(), info.Bound.Min.Lat(), info.Bound.Max.Lon(), info.Bound.Max.Lat()}
	return info, nil
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
