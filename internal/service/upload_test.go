package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb/geojson"

	"github.com/modasir321/coastline-analysis/internal/backend"
	"github.com/modasir321/coastline-analysis/internal/service/servicetest"
)

// writeShapefileZip writes a zipped point shapefile with a NAME field.
func writeShapefileZip(t *testing.T, dir string, points [][2]float64) string {
	t.Helper()

	shpPath := filepath.Join(dir, "area.shp")
	w, err := shp.Create(shpPath, shp.POINT)
	if err != nil {
		t.Fatalf("shp.Create: %v", err)
	}
	if err := w.SetFields([]shp.Field{shp.StringField("NAME", 25)}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	for i, p := range points {
		n := w.Write(&shp.Point{X: p[0], Y: p[1]})
		if err := w.WriteAttribute(int(n), 0, "site"); err != nil {
			t.Fatalf("WriteAttribute %d: %v", i, err)
		}
	}
	w.Close()

	// go-shp v0.1.1 names the attribute file "areadbf".
	if _, err := os.Stat(filepath.Join(dir, "areadbf")); err == nil {
		if err := os.Rename(filepath.Join(dir, "areadbf"), filepath.Join(dir, "area.dbf")); err != nil {
			t.Fatal(err)
		}
	}

	zipPath := filepath.Join(dir, "area.zip")
	out, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		data, err := os.ReadFile(filepath.Join(dir, "area"+ext))
		if err != nil {
			t.Fatal(err)
		}
		f, err := zw.Create("area" + ext)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	return zipPath
}

func TestValidateFilename(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"area.zip", true},
		{"AREA.ZIP", true},
		{"", false},
		{"area.shp", false},
		{"area.geojson", false},
		{"../area.zip", false},
		{"dir/area.zip", false},
	}
	for _, tc := range cases {
		err := ValidateFilename(tc.name)
		if (err == nil) != tc.ok {
			t.Errorf("ValidateFilename(%q) = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestUploadRejectsNonZip(t *testing.T) {
	be := &servicetest.Backend{}
	store := NewStore()
	u := NewUploadCoordinator(store, be, ControllerConfig{Logger: quietLogger})

	err := u.Upload(context.Background(), "coast.geojson", strings.NewReader("{}"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v", err)
	}
	if be.TotalCalls() != 0 {
		t.Fatal("invalid upload reached the backend")
	}
	if store.Snapshot().UI.Error != verr.Message {
		t.Fatalf("error not surfaced: %+v", store.Snapshot().UI)
	}
}

func TestUploadSetsStudyArea(t *testing.T) {
	be := &servicetest.Backend{}
	store := NewStore()
	u := NewUploadCoordinator(store, be, ControllerConfig{Logger: quietLogger})

	if err := u.Upload(context.Background(), "area.zip", strings.NewReader("PK")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if be.Last("UploadShapefile") != "area.zip" {
		t.Fatalf("filename = %v", be.Last("UploadShapefile"))
	}
	if area := store.Snapshot().Data.StudyArea; area == nil || len(area.Features) != 1 {
		t.Fatalf("study area = %v", area)
	}
}

func TestUploadBackendError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"backend message", &backend.APIError{Status: 400, Message: "No .shp file found in archive"}, "No .shp file found in archive"},
		{"transport", errors.New("connection reset"), MsgUploadFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			be := &servicetest.Backend{
				UploadFunc: func(ctx context.Context, filename string, data []byte) (*geojson.FeatureCollection, error) {
					return nil, tc.err
				},
			}
			store := NewStore()
			u := NewUploadCoordinator(store, be, ControllerConfig{Logger: quietLogger})

			if err := u.Upload(context.Background(), "area.zip", strings.NewReader("PK")); err == nil {
				t.Fatal("expected error")
			}
			snap := store.Snapshot()
			if snap.UI.Error != tc.want || snap.Data.StudyArea != nil {
				t.Fatalf("snapshot = %+v", snap)
			}
		})
	}
}

func TestUploadSizeLimit(t *testing.T) {
	var sent int
	be := &servicetest.Backend{
		UploadFunc: func(ctx context.Context, filename string, data []byte) (*geojson.FeatureCollection, error) {
			sent = len(data)
			return servicetest.Squares(1), nil
		},
	}
	store := NewStore()
	u := NewUploadCoordinator(store, be, ControllerConfig{Logger: quietLogger})

	err := u.Upload(context.Background(), "huge.zip", bytes.NewReader(make([]byte, MaxUploadSize+1)))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if be.TotalCalls() != 0 {
		t.Fatal("oversized upload reached the backend")
	}
	if snap := store.Snapshot(); snap.UI.Error != verr.Message || snap.Data.StudyArea != nil {
		t.Fatalf("snapshot = %+v", snap)
	}

	if err := u.Upload(context.Background(), "full.zip", bytes.NewReader(make([]byte, MaxUploadSize))); err != nil {
		t.Fatalf("upload at the limit: %v", err)
	}
	if sent != MaxUploadSize {
		t.Fatalf("sent %d bytes, want %d", sent, MaxUploadSize)
	}
}

func TestUploadFailureKeepsAnalysisLoading(t *testing.T) {
	be := &servicetest.Backend{
		UploadFunc: func(ctx context.Context, filename string, data []byte) (*geojson.FeatureCollection, error) {
			return nil, errors.New("connection reset")
		},
	}
	store := NewStore()
	store.SetLoading(true)
	u := NewUploadCoordinator(store, be, ControllerConfig{Logger: quietLogger})

	if err := u.Upload(context.Background(), "area.zip", strings.NewReader("PK")); err == nil {
		t.Fatal("expected error")
	}
	if ui := store.Snapshot().UI; !ui.Loading || ui.Error != "" {
		t.Fatalf("upload failure interrupted loading: %+v", ui)
	}
}

func TestUploadInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	be := &servicetest.Backend{
		UploadFunc: func(ctx context.Context, filename string, data []byte) (*geojson.FeatureCollection, error) {
			close(started)
			<-release
			return servicetest.Squares(1), nil
		},
	}
	u := NewUploadCoordinator(NewStore(), be, ControllerConfig{Logger: quietLogger})

	done := make(chan error, 1)
	go func() { done <- u.Upload(context.Background(), "a.zip", strings.NewReader("PK")) }()
	<-started

	if err := u.Upload(context.Background(), "b.zip", strings.NewReader("PK")); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("overlapping upload err = %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first upload: %v", err)
	}
}

func TestInspect(t *testing.T) {
	path := writeShapefileZip(t, t.TempDir(), [][2]float64{{1, 2}, {3, 4}, {2, 3}})

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Name != "area.zip" || info.Shapes != 3 {
		t.Fatalf("info = %+v", info)
	}
	if len(info.Fields) != 1 || info.Fields[0] != "NAME" {
		t.Fatalf("fields = %v", info.Fields)
	}
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if info.BBox[i] != want[i] {
			t.Fatalf("bbox = %v, want %v", info.BBox, want)
		}
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	var verr *ValidationError
	if _, err := Inspect(path); !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestUploadFile(t *testing.T) {
	path := writeShapefileZip(t, t.TempDir(), [][2]float64{{0, 0}})
	be := &servicetest.Backend{}
	store := NewStore()
	u := NewUploadCoordinator(store, be, ControllerConfig{Logger: quietLogger})

	info, err := u.UploadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if info.Shapes != 1 || be.Calls("UploadShapefile") != 1 {
		t.Fatalf("info = %+v, calls = %d", info, be.Calls("UploadShapefile"))
	}
	if store.Snapshot().Data.StudyArea == nil {
		t.Fatal("study area not stored")
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		512:         "512 B",
		2048:        "2.0 KB",
		5 << 20:     "5.0 MB",
		3 << 30 / 2: "1.5 GB",
	}
	for in, want := range cases {
		if got := formatSize(in); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
