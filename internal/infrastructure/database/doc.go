// Package database provides the SQLite connection and schema migrations for
// Marchog Ops Core.
//
// Scenes, screen configurations, playlists, rooms, zones, pages, and
// automations are all persisted in a single SQLite file. The connection is
// opened with WAL mode and foreign keys enabled, and the pool is pinned to a
// single connection because SQLite supports only one writer.
//
// Migrations are plain SQL files embedded into the binary by the top-level
// migrations package. Each runs in its own transaction and is recorded in the
// schema_migrations table.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/marchog.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
