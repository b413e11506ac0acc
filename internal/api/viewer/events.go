// Package viewer contains Datastar SSE handlers for the map viewer UI.
package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/modasir321/coastline-analysis/internal/humastar"
	"github.com/modasir321/coastline-analysis/internal/render"
	"github.com/modasir321/coastline-analysis/internal/service"
	"github.com/modasir321/coastline-analysis/internal/templates"
)

// EventHandler streams map state changes to the Datastar UI via SSE.
type EventHandler struct {
	humastar.Handler
	store *service.Store
}

// NewEventHandler creates a new event handler.
func NewEventHandler(store *service.Store, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{
		Handler: humastar.Handler{Renderer: renderer},
		store:   store,
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events,
		huma.OperationTags("viewer"),
	)
}

// Events sends the current state once and then one update per store event
// until the client goes away.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.store.Subscribe()
		defer h.store.Unsubscribe(ch)

		h.push(sse, h.store.Snapshot())
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				h.push(sse, h.store.Snapshot())
				sse.DispatchCustomEvent("map-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"id":       ev.ID,
				})
			}
		}
	}), nil
}

func (h *EventHandler) push(sse humastar.SSE, snap service.Snapshot) {
	sse.Signals(stateSignals(snap.UI))
	sse.Patch(h.Fragment("status", snap.UI), "#status")
	sse.Patch(h.Fragment("legend", newLegendData(snap.Data)), "#legend")
	sse.Patch(h.renderLayerList(render.Summarize(snap.Data)), "#layer-list")
}

func stateSignals(ui service.UIState) map[string]any {
	return map[string]any{
		"loading":   ui.Loading,
		"error":     ui.Error,
		"baseLayer": ui.BaseLayer,
		"period":    ui.Period,
	}
}
