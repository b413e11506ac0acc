package viewer

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/modasir321/coastline-analysis/internal/render"
	"github.com/modasir321/coastline-analysis/internal/service"
	"github.com/modasir321/coastline-analysis/internal/templates"
	"github.com/modasir321/coastline-analysis/web"
)

func TestRenderLayerList(t *testing.T) {
	renderer, err := templates.New(web.Fragments, web.FragmentsPattern)
	if err != nil {
		t.Fatal(err)
	}
	h := NewEventHandler(service.NewStore(), renderer)

	if got := h.renderLayerList(render.Summary{}); !strings.Contains(got, "No layers loaded") {
		t.Fatalf("empty list = %q", got)
	}

	got := h.renderLayerList(render.Summary{Layers: map[render.Kind]int{
		render.KindErosion:  4,
		render.KindBaseline: 2,
	}})
	base, erosion := strings.Index(got, "layer-baseline"), strings.Index(got, "layer-erosion")
	if base < 0 || erosion < 0 || base > erosion {
		t.Fatalf("rows out of order: %q", got)
	}
	if !strings.Contains(got, "4 features") {
		t.Fatalf("count missing: %q", got)
	}
}

func TestRenderLayerListTemplateError(t *testing.T) {
	renderer, err := templates.New(fstest.MapFS{
		"fragments/status.html": {Data: []byte(`{{define "status"}}ok{{end}}`)},
	}, "fragments/*.html")
	if err != nil {
		t.Fatal(err)
	}
	h := NewEventHandler(service.NewStore(), renderer)

	got := h.renderLayerList(render.Summary{Layers: map[render.Kind]int{render.KindComparison: 1}})
	if !strings.Contains(got, "<!-- template error:") {
		t.Fatalf("missing template reported as %q", got)
	}
	if got := h.renderLayerList(render.Summary{}); !strings.Contains(got, "<!-- template error:") {
		t.Fatalf("missing empty-state reported as %q", got)
	}
}
