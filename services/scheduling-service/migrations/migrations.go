// Package migrations embeds the service schema, applied at startup.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
