// Package migrations embeds the control-plane schema applied at startup.
package migrations

import "embed"

// FS holds the goose SQL migrations at its root.
//
//go:embed *.sql
var FS embed.FS
