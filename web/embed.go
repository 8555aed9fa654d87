// Package web holds the console's server-side templates, static assets and
// the store view fragments loaded by the browser.
package web

import "embed"

// EmbeddedFS contains templates/, static/ and partials/.
//
//go:embed templates static partials
var EmbeddedFS embed.FS
