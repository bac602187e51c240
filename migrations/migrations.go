// Package migrations embeds the SQL schema for the records store, the
// chat log and the processed-events table. cmd/migrate applies them.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
