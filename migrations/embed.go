// Package migrations embeds the schema for the database settings backends,
// one directory per dialect in golang-migrate's NNNN_name.{up,down}.sql form.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
