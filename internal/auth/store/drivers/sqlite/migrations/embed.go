// Package migrations embeds the SQL migration files so the binary carries its
// own schema and never depends on files on disk.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
