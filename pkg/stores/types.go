package stores

import (
	"context"
	"errors"

	"github.com/openlosa/losa/pkg/loan"
)

var (
	// ErrNotFound is returned when no application exists for an ID.
	ErrNotFound = errors.New("application not found")

	// ErrVersionConflict is returned when a commit's expected version no
	// longer matches the stored version. The caller must reload and
	// re-evaluate before retrying.
	ErrVersionConflict = errors.New("version conflict")
)

// Store defines the persistence contract for loan applications.
//
// Applications are persisted as versioned snapshots. Every mutation goes
// through CommitTransition, which atomically writes the new snapshot and
// its audit entries only when the expected version still matches. Audit
// entries are append-only; no operation updates or deletes them.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Create persists a new application snapshot at version 1 together
	// with its intake audit entries.
	Create(ctx context.Context, app *loan.Application, entries []loan.AuditLogEntry) error

	// Load returns the current snapshot for the given application ID.
	// Returns ErrNotFound when no such application exists.
	Load(ctx context.Context, id string) (*loan.Application, error)

	// CommitTransition atomically persists the updated snapshot and
	// appends the audit entries, provided the stored version still
	// equals expectedVersion. The committed snapshot's version is
	// expectedVersion+1. Returns ErrVersionConflict when the stored
	// version has moved; nothing is written in that case.
	CommitTransition(ctx context.Context, id string, expectedVersion int64, app *loan.Application, entries []loan.AuditLogEntry) error

	// AuditTrail returns the application's audit entries in commit
	// order (ascending sequence).
	AuditTrail(ctx context.Context, id string) ([]loan.AuditLogEntry, error)

	// ListByStatus returns applications currently in the given status,
	// most recently updated first.
	ListByStatus(ctx context.Context, status loan.Status, limit, offset int) ([]*loan.Application, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
