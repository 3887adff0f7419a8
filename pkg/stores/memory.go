package stores

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openlosa/losa/pkg/loan"
)

// MemoryStore is an in-process Store backed by maps. It honors the full
// contract including version checks and append-only audit sequencing, so
// engine tests exercise the same semantics the SQLite store provides.
type MemoryStore struct {
	mu    sync.RWMutex
	apps  map[string]*loan.Application
	audit map[string][]loan.AuditLogEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:  make(map[string]*loan.Application),
		audit: make(map[string][]loan.AuditLogEntry),
	}
}

// Init is a no-op for the memory store.
func (s *MemoryStore) Init(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// Migrate is a no-op for the memory store.
func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

// Create persists a new application snapshot at version 1.
func (s *MemoryStore) Create(_ context.Context, app *loan.Application, entries []loan.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[app.ID]; exists {
		return ErrVersionConflict
	}

	snapshot := app.Clone()
	snapshot.Version = 1
	s.apps[app.ID] = snapshot
	s.appendEntries(app.ID, entries)
	app.Version = 1
	return nil
}

// Load returns a copy of the current snapshot.
func (s *MemoryStore) Load(_ context.Context, id string) (*loan.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return app.Clone(), nil
}

// CommitTransition writes the snapshot and audit entries if the stored
// version still matches expectedVersion.
func (s *MemoryStore) CommitTransition(_ context.Context, id string, expectedVersion int64, app *loan.Application, entries []loan.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.apps[id]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}

	snapshot := app.Clone()
	snapshot.Version = expectedVersion + 1
	s.apps[id] = snapshot
	s.appendEntries(id, entries)
	app.Version = snapshot.Version
	return nil
}

// AuditTrail returns the entries in commit order.
func (s *MemoryStore) AuditTrail(_ context.Context, id string) ([]loan.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.apps[id]; !ok {
		return nil, ErrNotFound
	}
	trail := s.audit[id]
	out := make([]loan.AuditLogEntry, len(trail))
	copy(out, trail)
	return out, nil
}

// ListByStatus returns applications in the given status, most recently
// updated first.
func (s *MemoryStore) ListByStatus(_ context.Context, status loan.Status, limit, offset int) ([]*loan.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*loan.Application
	for _, app := range s.apps {
		if app.Status == status {
			matched = append(matched, app)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*loan.Application, len(matched))
	for i, app := range matched {
		out[i] = app.Clone()
	}
	return out, nil
}

// HealthCheck is always healthy for the memory store.
func (s *MemoryStore) HealthCheck(_ context.Context) error { return nil }

// appendEntries assigns sequence numbers and timestamps under the lock.
func (s *MemoryStore) appendEntries(id string, entries []loan.AuditLogEntry) {
	trail := s.audit[id]
	seq := int64(len(trail))
	for _, e := range entries {
		seq++
		e.Sequence = seq
		e.ApplicationID = id
		if e.RecordedAt.IsZero() {
			e.RecordedAt = time.Now().UTC()
		}
		trail = append(trail, e)
	}
	s.audit[id] = trail
}
