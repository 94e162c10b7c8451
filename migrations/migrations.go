// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

// PostgresDir is the directory of Postgres inside its filesystem.
const PostgresDir = "postgres"
