// Package migrations embeds the goose migrations of the remote PostgreSQL
// data store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
