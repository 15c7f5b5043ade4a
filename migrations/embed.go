// Package migrations carries the bridge's SQL schema files, compiled
// into the binary so deployment is a single executable plus a config
// file.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/database"
)

//go:embed *.sql
var schemaFS embed.FS

// Importing this package (blank import from main) hands the embedded
// files to the database layer, which applies them in order on startup.
func init() {
	database.MigrationsFS = schemaFS
	database.MigrationsDir = "."
}
