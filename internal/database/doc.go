// Package database provides SQLite-based storage for credaudit audit history.
//
// This package implements the AuditDB, which stores:
//   - One row per audit run with its counters and index fingerprint
//   - The redacted report of each run as JSON
//   - The weak accounts of each run, for diffing consecutive runs
//
// Matched cleartexts are never written: reports are redacted before they
// are stored.
//
// We use SQLite via modernc.org/sqlite so the history is a single CGO-free
// file in the XDG data directory.
package database
