// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two interfaces
// through a single database connection:
//
//   - RecordStore: Record persistence with parent/child links
//   - VectorIndex: One embedding per record, searched by cosine distance
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Triggers reject writes that would nest a chunk below another chunk.
//
// # Data Location
//
// By default, the database is stored at ~/.neurovault/data/vault.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
