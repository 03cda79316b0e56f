// Package migrations holds the schema as golang-migrate up/down pairs.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
