// Package web embeds the viewer page and the HTML fragments streamed to it.
package web

import "embed"

// FragmentsPattern matches every fragment template in Fragments.
const FragmentsPattern = "templates/fragments/*.html"

// ViewerPage is the path of the map page inside Pages.
const ViewerPage = "templates/viewer.html"

//go:embed templates/fragments/*.html
var Fragments embed.FS

//go:embed templates/viewer.html
var Pages embed.FS
