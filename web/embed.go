// Package web compiles the UI into the binary: template sources for the
// page and fragment renderers, plus the stylesheet and the htmx glue
// script served under /static/.
package web

import "embed"

//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/css static/js
var StaticFS embed.FS
