package humastar

import "testing"

type exportable struct{ ready bool }

func (e exportable) Actions() []Action {
	if !e.ready {
		return nil
	}
	return []Action{{Rel: "export", Href: "/api/v1/export", Method: "POST", Title: "Export change data"}}
}

func TestActionHeaders(t *testing.T) {
	got := ActionHeaders(exportable{ready: true})
	want := `</api/v1/export>; rel="export"; method="POST"; title="Export change data"`
	if len(got) != 1 || got[0] != want {
		t.Fatalf("ActionHeaders = %q", got)
	}
	if got := ActionHeaders(exportable{}); len(got) != 0 {
		t.Fatalf("inactive actor emitted %q", got)
	}
	if got := ActionHeaders("plain body"); got != nil {
		t.Fatalf("non-actor emitted %q", got)
	}
}

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"baseLayer":"satellite","loading":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.String("baseLayer") != "satellite" || s.String("loading") != "" || !s.Has("loading") || s.Has("period") {
		t.Fatalf("signals = %v", s)
	}
	in := &SignalsInput{RawBody: []byte("{")}
	if _, err := in.MustParse(); err == nil {
		t.Fatal("malformed signals accepted")
	}
}
