// Package stores provides the record store for loan applications.
// It defines the store contract (versioned snapshot load, atomic
// commit-with-audit, append-only audit trail) and ships two
// implementations: an in-memory store for tests and embedding, and a
// SQLite-based store with WAL mode and embedded schema migrations.
package stores
