package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/modasir321/coastline-analysis/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/state>; rel="state"`,
		`</api/v1/layers>; rel="layers"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/state>; rel="state"`,
	},
	"/api/v1/state": {
		`</api/v1/layers>; rel="layers"`,
		`</api/v1/view>; rel="edit"`,
		`</api/v1/viewer/events>; rel="monitor"`,
	},
	"/api/v1/layers": {
		`</api/v1/state>; rel="state"`,
		`</api/v1/view>; rel="edit"`,
	},
	"/api/v1/view": {
		`</api/v1/layers>; rel="layers"`,
	},
	"/api/v1/analysis": {
		`</api/v1/state>; rel="monitor"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers,
// including state-dependent actions of bodies implementing humastar.Actor.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}
		for _, link := range humastar.ActionHeaders(v) {
			ctx.AppendHeader("Link", link)
		}

		return v, nil
	}
}
