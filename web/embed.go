// Package web provides the embedded HTML document template sources.
// Templates are compiled at first use by the render cache; embedding
// them means no external files are needed at runtime.
package web

import "embed"

// Templates embeds the web/templates/ directory: one
// <kind>.html.tmpl file per document kind.
//
//go:embed templates
var Templates embed.FS
