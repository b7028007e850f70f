package postgres

import "embed"

// Migrations holds the versioned schema applied by cmd/migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS
