// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/danielgtaylor/huma/v2"

	"github.com/modasir321/coastline-analysis/internal/humastar"
	"github.com/modasir321/coastline-analysis/internal/render"
	"github.com/modasir321/coastline-analysis/internal/service"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Store      *service.Store
	Controller *service.Controller
	Uploads    *service.UploadCoordinator
	Renderer   *render.Renderer
	BackendURL string
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// DatesBody describes the date picker bounds and defaults.
type DatesBody struct {
	Mode         service.Mode `json:"mode" doc:"Request mode" enum:"range,end-date,snapshot"`
	MinDate      string       `json:"minDate" doc:"Earliest selectable date" example:"2017-01-01"`
	MaxDate      string       `json:"maxDate" doc:"Latest selectable date (today)"`
	DefaultStart string       `json:"defaultStart,omitempty" doc:"Initial start date (range mode only)"`
	DefaultEnd   string       `json:"defaultEnd" doc:"Initial end date" example:"2023-06-30"`
}

// StateBody is the current map state without geometry.
type StateBody struct {
	UI       service.UIState `json:"ui" doc:"Toggles and request status"`
	InFlight bool            `json:"inFlight" doc:"Whether an analysis request is pending"`
	Summary  render.Summary  `json:"summary" doc:"Loaded layers and change areas"`
	Dates    DatesBody       `json:"dates" doc:"Date picker bounds"`
}

// Actions lists what the client can do next.
func (b StateBody) Actions() []humastar.Action {
	var actions []humastar.Action
	if !b.InFlight {
		actions = append(actions, humastar.Action{
			Rel: "analyze", Href: "/api/v1/analysis", Method: "POST", Title: "Analyze coastal changes",
		})
	}
	if b.Summary.Layers[render.KindComparison] > 0 || b.Summary.Layers[render.KindErosion] > 0 ||
		b.Summary.Layers[render.KindAccretion] > 0 {
		actions = append(actions, humastar.Action{
			Rel: "export", Href: "/api/v1/export", Method: "POST", Title: "Export change data",
		})
	}
	return actions
}

// LayersBody is the rendered layer stack, bottom first.
type LayersBody struct {
	Layers []render.Layer      `json:"layers" doc:"Drawable layers, bottom first"`
	Legend []render.LegendItem `json:"legend" doc:"Legend entries"`
	UI     service.UIState     `json:"ui" doc:"Toggles the layers were rendered with"`
}

// ViewInput changes the layer toggles. Omitted fields are left as they are.
type ViewInput struct {
	Body struct {
		BaseLayer service.BaseLayer `json:"baseLayer,omitempty" enum:"change,satellite" doc:"Active base layer"`
		Period    service.Period    `json:"period,omitempty" enum:"baseline,comparison,both" doc:"Visible coastline period"`
	}
}

// AnalysisInput is the date window to analyze.
type AnalysisInput struct {
	Body struct {
		StartDate string `json:"startDate,omitempty" doc:"Start of the comparison window (range mode)" example:"2022-06-30"`
		EndDate   string `json:"endDate" doc:"End of the comparison window" example:"2023-06-30"`
	}
}

type AnalysisBody struct {
	ID      string `json:"id" doc:"Request id"`
	Message string `json:"message" doc:"Result message"`
}

type UploadInput struct {
	RawBody multipart.Form
}

type UploadBody struct {
	Message  string `json:"message" doc:"Result message"`
	Features int    `json:"features" doc:"Features in the returned study area"`
}

type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterState registers the state and layer read routes.
func (h *APIHandler) RegisterState(api huma.API) {
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("map"))
	huma.Put(api, "/api/v1/view", h.PutView, huma.OperationTags("map"))
}

// RegisterAnalysis registers the request routes.
func (h *APIHandler) RegisterAnalysis(api huma.API) {
	huma.Post(api, "/api/v1/analysis", h.PostAnalysis, huma.OperationTags("analysis"),
		func(o *huma.Operation) { o.DefaultStatus = 202 })
	huma.Post(api, "/api/v1/baseline", h.PostBaseline, huma.OperationTags("analysis"))
	huma.Post(api, "/api/v1/upload", h.PostUpload, huma.OperationTags("analysis"),
		func(o *huma.Operation) { o.MaxBodyBytes = service.MaxUploadSize + 1<<20 })
	huma.Post(api, "/api/v1/export", h.PostExport, huma.OperationTags("analysis"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetState(ctx context.Context, input *struct{}) (*struct{ Body StateBody }, error) {
	snap := h.svc.Store.Snapshot()
	return &struct{ Body StateBody }{Body: StateBody{
		UI:       snap.UI,
		InFlight: h.svc.Controller.InFlight(),
		Summary:  render.Summarize(snap.Data),
		Dates:    h.dates(),
	}}, nil
}

func (h *APIHandler) dates() DatesBody {
	sel := h.svc.Controller.Selector()
	start, end := sel.Defaults()
	return DatesBody{
		Mode:         sel.Mode,
		MinDate:      sel.MinDate.Format(service.DateLayout),
		MaxDate:      sel.Today().Format(service.DateLayout),
		DefaultStart: start,
		DefaultEnd:   end,
	}
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body LayersBody }, error) {
	snap := h.svc.Store.Snapshot()
	layers := h.svc.Renderer.Render(snap.Data, snap.UI)
	if layers == nil {
		layers = []render.Layer{}
	}
	return &struct{ Body LayersBody }{Body: LayersBody{
		Layers: layers,
		Legend: render.Legend,
		UI:     snap.UI,
	}}, nil
}

func (h *APIHandler) PutView(ctx context.Context, input *ViewInput) (*struct{ Body service.UIState }, error) {
	if input.Body.BaseLayer != "" {
		h.svc.Store.SetBaseLayer(input.Body.BaseLayer)
	}
	if input.Body.Period != "" {
		h.svc.Store.SetPeriod(input.Body.Period)
	}
	return &struct{ Body service.UIState }{Body: h.svc.Store.Snapshot().UI}, nil
}

func (h *APIHandler) PostAnalysis(ctx context.Context, input *AnalysisInput) (*struct{ Body AnalysisBody }, error) {
	id, err := h.svc.Controller.SubmitAnalysis(ctx, input.Body.StartDate, input.Body.EndDate)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body AnalysisBody }{Body: AnalysisBody{ID: id, Message: "Analysis started"}}, nil
}

func (h *APIHandler) PostBaseline(ctx context.Context, input *struct{}) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Controller.LoadBaseline(ctx); err != nil {
		return nil, huma.Error502BadGateway(service.MsgBaselineFailed, err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Baseline loaded"}}, nil
}

func (h *APIHandler) PostUpload(ctx context.Context, input *UploadInput) (*struct{ Body UploadBody }, error) {
	files := input.RawBody.File["file"]
	if len(files) != 1 {
		return nil, huma.Error400BadRequest("Exactly one shapefile archive is required")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, huma.Error400BadRequest("Failed to open uploaded file")
	}
	defer file.Close()

	if err := h.svc.Uploads.Upload(ctx, fileHeader.Filename, file); err != nil {
		return nil, toHumaError(err)
	}

	features := 0
	if area := h.svc.Store.Snapshot().Data.StudyArea; area != nil {
		features = len(area.Features)
	}
	return &struct{ Body UploadBody }{Body: UploadBody{
		Message: "Study area uploaded: " + fileHeader.Filename, Features: features,
	}}, nil
}

func (h *APIHandler) PostExport(ctx context.Context, input *struct{}) (*ExportOutput, error) {
	var archive []byte
	saver := service.SaverFunc(func(name string, data []byte) (string, error) {
		archive = data
		return name, nil
	})

	boundaries := h.svc.Store.Snapshot().Data.WaterBoundaries()
	if _, err := h.svc.Controller.RequestExport(ctx, boundaries, saver); err != nil {
		return nil, toHumaError(err)
	}
	return &ExportOutput{
		ContentType:        "application/zip",
		ContentDisposition: `attachment; filename="` + service.ExportFilename + `"`,
		Body:               archive,
	}, nil
}

// toHumaError maps service errors onto HTTP statuses.
func toHumaError(err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return huma.Error400BadRequest(verr.Message)
	case errors.Is(err, service.ErrAnalysisInFlight), errors.Is(err, service.ErrUploadInFlight):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrNoChangeData):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error502BadGateway("Analysis service request failed", err)
	}
}
