// Package data holds the datasets bundled with andarTayo: the line
// registry and, per line, its stops, fare table and supplementary
// info.
package data

import "embed"

//go:embed lines.yaml lrt1 lrt2 mrt3 carousel
var FS embed.FS
