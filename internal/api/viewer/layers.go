package viewer

import (
	"strings"

	"github.com/modasir321/coastline-analysis/internal/render"
	"github.com/modasir321/coastline-analysis/internal/service"
)

// layerOrder is the order rows appear in the layer panel.
var layerOrder = []render.Kind{
	render.KindBaseline,
	render.KindComparison,
	render.KindErosion,
	render.KindAccretion,
	render.KindStudyArea,
}

type LayerRowData struct {
	ID    string
	Color string
	Count int
}

// LegendData feeds the legend fragment.
type LegendData struct {
	Items        []render.LegendItem
	HasErosion   bool
	ErosionKm2   float64
	HasAccretion bool
	AccretionKm2 float64
}

func newLegendData(data service.MapData) LegendData {
	sum := render.Summarize(data)
	return LegendData{
		Items:        render.Legend,
		HasErosion:   data.Erosion != nil,
		ErosionKm2:   sum.ErosionKm2,
		HasAccretion: data.Accretion != nil,
		AccretionKm2: sum.AccretionKm2,
	}
}

func (h *EventHandler) renderLayerList(sum render.Summary) string {
	if len(sum.Layers) == 0 {
		return h.Fragment("empty-state", map[string]string{
			"Title": "No layers loaded", "Message": "Pick a date range and run an analysis",
		})
	}
	var b strings.Builder
	for _, kind := range layerOrder {
		count, ok := sum.Layers[kind]
		if !ok {
			continue
		}
		b.WriteString(h.Fragment("layer-row", LayerRowData{
			ID: string(kind), Color: render.Styles[kind].Color, Count: count,
		}))
	}
	return b.String()
}
