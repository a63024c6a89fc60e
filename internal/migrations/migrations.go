// Package migrations embeds the SQL schema files applied by goose at startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
