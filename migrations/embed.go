// Package migrations embeds the SQL applied by internal/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
