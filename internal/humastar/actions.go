package humastar

import "fmt"

// Action is a state-dependent hypermedia action link.
// Response bodies implement the Actor interface to emit conditional
// RFC 8288 Link headers with method and title extension parameters.
//
// Example Link header output:
//
//	</api/v1/export>; rel="export"; method="POST"; title="Export change data"
type Action struct {
	Rel    string // IANA rel or custom (e.g., "analyze", "export")
	Href   string // target URL
	Method string // HTTP method: POST, PUT, DELETE, etc.
	Title  string // optional human-readable label
}

// Actor is implemented by response bodies that provide state-dependent actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value
// with method and title extension parameters.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	return h
}

// ActionHeaders returns the Link header values for v if it is an Actor.
func ActionHeaders(v any) []string {
	actor, ok := v.(Actor)
	if !ok {
		return nil
	}
	var headers []string
	for _, a := range actor.Actions() {
		headers = append(headers, a.LinkHeader())
	}
	return headers
}
