// Package db provides the embedded database migrations and seed catalogue.
package db

import "embed"

// Migrations holds the numbered DDL files, applied in name order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Catalog is the demo catalogue loaded by seed-db when no file is given.
//
//go:embed seed/catalog.json
var Catalog []byte
