package templates

import (
	"testing"
	"testing/fstest"
)

func TestRender(t *testing.T) {
	fsys := fstest.MapFS{
		"fragments/area.html": {Data: []byte(`{{define "area"}}{{km2 .}}{{end}}`)},
		"fragments/pair.html": {Data: []byte(`{{define "pair"}}{{with dict "a" 1 "b" "two"}}{{.a}}-{{.b}}{{end}}{{end}}`)},
	}

	r, err := New(fsys, "fragments/*.html")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, err := r.Render("area", 1.234); err != nil || got != "1.23 km²" {
		t.Fatalf("area = %q, %v", got, err)
	}
	if got, _ := r.Render("pair", nil); got != "1-two" {
		t.Fatalf("pair = %q", got)
	}
	if _, err := r.Render("missing", nil); err == nil {
		t.Fatal("missing template rendered")
	}
}

func TestNewNoMatches(t *testing.T) {
	if _, err := New(fstest.MapFS{}, "fragments/*.html"); err == nil {
		t.Fatal("expected error for empty pattern match")
	}
}
