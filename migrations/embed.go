// Package migrations embeds the SQL schema for golang-migrate and for the
// store's create-if-not-exists bootstrap.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// InitSchema is the idempotent initial schema.
//
//go:embed 000001_init.up.sql
var InitSchema string
