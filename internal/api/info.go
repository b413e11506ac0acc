package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	backendURL string
	mode       string
}

func NewInfoHandler(backendURL, mode string) *InfoHandler {
	return &InfoHandler{backendURL: backendURL, mode: mode}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Backend  string   `json:"backend" doc:"Analysis service base URL"`
	Mode     string   `json:"mode" doc:"Date selection mode"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "coastline-analysis",
		Version:  Version,
		Backend:  h.backendURL,
		Mode:     h.mode,
		Features: []string{"change-analysis", "satellite-overlay", "shapefile-upload", "export"},
	}}, nil
}
