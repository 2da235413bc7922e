// Package ui embeds the single-page front end served at GET /.
package ui

import (
	_ "embed"
)

// IndexHTML is the lookup and download page. It posts the url form to /
// and the chosen format to /download.
//
//go:embed index.html
var IndexHTML []byte
