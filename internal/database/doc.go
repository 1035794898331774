// Package database provides SQLite-based storage for detection sessions.
//
// This package implements the SessionDB, which stores:
//   - Every detection session as its JSON record
//   - A per-target verdict row for cross-session history queries
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets the watch view read while a detection writes
//
// The session record is stored whole, in the same JSON shape the file cache
// uses, so the two stores are interchangeable and a record can be copied
// from one to the other without conversion.
package database
