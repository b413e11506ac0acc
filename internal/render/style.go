package render

// Kind identifies a drawable layer slot.
type Kind string

const (
	KindRaster     Kind = "raster"
	KindBaseline   Kind = "baseline"
	KindComparison Kind = "comparison"
	KindErosion    Kind = "erosion"
	KindAccretion  Kind = "accretion"
	KindStudyArea  Kind = "study-area"
)

// Style is the Leaflet path style of a layer.
type Style struct {
	Color       string  `json:"color,omitempty" doc:"Stroke color (CSS)" example:"#0000ff"`
	Weight      float64 `json:"weight,omitempty" doc:"Stroke width in pixels"`
	DashArray   string  `json:"dashArray,omitempty" doc:"Stroke dash pattern"`
	FillColor   string  `json:"fillColor,omitempty" doc:"Fill color (CSS)"`
	FillOpacity float64 `json:"fillOpacity" minimum:"0" maximum:"1" doc:"Fill opacity (0-1)"`
	Opacity     float64 `json:"opacity,omitempty" minimum:"0" maximum:"1" doc:"Layer opacity (0-1)"`
}

// LegendItem defines a legend entry.
type LegendItem struct {
	Label string `json:"label" doc:"Legend label"`
	Color string `json:"color" doc:"Legend color (CSS)"`
}

// Styles holds the style of every layer kind.
var Styles = map[Kind]Style{
	KindRaster:     {Opacity: 0.8},
	KindBaseline:   {Color: "#0000ff", Weight: 2},
	KindComparison: {Color: "#00ff00", Weight: 2},
	KindErosion:    {Color: "#ff0000", Weight: 3, DashArray: "5,5", FillColor: "#ff0000", FillOpacity: 0.3},
	KindAccretion:  {Color: "#00ff00", Weight: 3, DashArray: "5,5", FillColor: "#00ff00", FillOpacity: 0.3},
	KindStudyArea:  {Color: "#ff0000", Weight: 2, FillOpacity: 0.2},
}

// Legend is the change-analysis legend.
var Legend = []LegendItem{
	{Label: "Baseline", Color: "#0000ff"},
	{Label: "Current Coast", Color: "#00ff00"},
	{Label: "Erosion", Color: "#ff0000"},
	{Label: "Accretion", Color: "#00ff00"},
}
