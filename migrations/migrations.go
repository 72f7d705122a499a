// Package migrations содержит встроенные SQL-миграции схемы,
// применяются при старте через golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
