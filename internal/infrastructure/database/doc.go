// Package database provides SQLite connectivity for the 1-Wire bridge.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations embedded into the binary
//   - Connection pooling and lifecycle management
//
// The bridge stores sensor readings here so the HTTP API can serve
// history without touching the bus. Persistence is optional; when the
// database is disabled in config the bridge runs in-memory only.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "data/readings.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only to support safe rollbacks: new columns must
// be NULLABLE or have DEFAULT values, and each migration file has both
// .up.sql and .down.sql.
package database
