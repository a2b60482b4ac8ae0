// Package testdata embeds demo rows applied on top of the schema.
package testdata

import "embed"

//go:embed *.sql
var FS embed.FS
