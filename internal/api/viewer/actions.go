package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/modasir321/coastline-analysis/internal/humastar"
	"github.com/modasir321/coastline-analysis/internal/service"
	"github.com/modasir321/coastline-analysis/internal/templates"
)

// ActionHandler handles signal posts from the viewer controls. State
// changes reach the page through the events stream.
type ActionHandler struct {
	humastar.Handler
	store      *service.Store
	controller *service.Controller
}

func NewActionHandler(store *service.Store, controller *service.Controller, renderer *templates.Renderer) *ActionHandler {
	return &ActionHandler{
		Handler:    humastar.Handler{Renderer: renderer},
		store:      store,
		controller: controller,
	}
}

func (h *ActionHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/viewer/view", h.SetView, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/analyze", h.Analyze, huma.OperationTags("viewer"))
}

// SetView applies the baseLayer and period signals.
func (h *ActionHandler) SetView(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	base := service.BaseLayer(signals.String("baseLayer"))
	period := service.Period(signals.String("period"))
	if signals.Has("baseLayer") && !base.Valid() {
		return nil, huma.Error400BadRequest("Unknown base layer: " + string(base))
	}
	if signals.Has("period") && !period.Valid() {
		return nil, huma.Error400BadRequest("Unknown period: " + string(period))
	}

	return h.Stream(func(sse humastar.SSE) {
		if base != "" {
			h.store.SetBaseLayer(base)
		}
		if period != "" {
			h.store.SetPeriod(period)
		}
		sse.Signals(stateSignals(h.store.Snapshot().UI))
	}), nil
}

// Analyze submits the startDate and endDate signals.
func (h *ActionHandler) Analyze(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	start, end := signals.String("startDate"), signals.String("endDate")

	return h.Stream(func(sse humastar.SSE) {
		id, err := h.controller.SubmitAnalysis(ctx, start, end)
		switch {
		case errors.Is(err, service.ErrAnalysisInFlight):
			sse.Error("An analysis is already running")
		case err != nil:
			sse.Error(err.Error())
		default:
			sse.Signals(map[string]any{"requestId": id, "loading": true, "error": ""})
		}
	}), nil
}
