// Package storage persists the audit trail: admin actions (connectivity
// tests) and registration outcomes. Notifications themselves are never stored.
//
// Drivers:
//   - "file": append-only JSON Lines next to the configured path
//   - "sqlite": SQLite database file (build with -tags sqlite)
package storage
