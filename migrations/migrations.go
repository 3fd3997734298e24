// Package migrations embeds the schema so the binary can migrate the database
// without the SQL files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
