// Package database provides the SQLite store behind mqttwaker's command
// history.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Forward-only schema migrations read from a registered filesystem
//   - Health checks for the daemon's startup log
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600 after open
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and are
// registered by the migrations package at init.
package database
