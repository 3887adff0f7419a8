package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openlosa/losa/pkg/loan"
)

// newTestApplication builds a minimal but structurally complete
// application for store tests.
func newTestApplication(id string) *loan.Application {
	now := time.Now().UTC()
	dob := time.Date(1990, 5, 2, 0, 0, 0, 0, time.UTC)
	return &loan.Application{
		ID:     id,
		Status: loan.StatusCreated,
		Personal: loan.PersonalInfo{
			FirstName:     "Iris",
			LastName:      "Chen",
			DateOfBirth:   dob,
			SSN:           "987-65-4321",
			Phone:         "5559876543",
			Email:         "iris.chen@example.com",
			MaritalStatus: loan.MaritalSingle,
			Address: loan.Address{
				Street:  "400 Pine St",
				City:    "Seattle",
				State:   "WA",
				ZipCode: "98101",
				Country: "US",
			},
		},
		Employment: loan.EmploymentInfo{
			Status:        loan.EmploymentEmployed,
			AnnualIncome:  84000,
			MonthlyIncome: 7000,
		},
		Financial: loan.FinancialInfo{
			MonthlyRentMortgage: 1500,
			MonthlyDebtPayments: 600,
		},
		Details: loan.LoanDetails{
			Type:                loan.LoanTypePersonal,
			RequestedAmount:     15000,
			RequestedTermMonths: 36,
			Purpose:             "Kitchen renovation project",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func intakeEntry(id string) loan.AuditLogEntry {
	return loan.AuditLogEntry{
		ID:            "e-" + id,
		ApplicationID: id,
		Stage:         loan.StageSubmit,
		Actor:         "system",
		Action:        "application_submitted",
		ToStatus:      loan.StatusCreated,
		RecordedAt:    time.Now().UTC(),
	}
}

// setupSQLiteStore creates an in-memory SQLite store for testing
func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	return store
}

// runStoreContract exercises the Store contract against any
// implementation. Both stores must pass identically.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("load missing returns ErrNotFound", func(t *testing.T) {
		if _, err := store.Load(ctx, "LOAN-00000000-MISSING0"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("create and load", func(t *testing.T) {
		app := newTestApplication("LOAN-20260828-TEST0001")
		if err := store.Create(ctx, app, []loan.AuditLogEntry{intakeEntry(app.ID)}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if app.Version != 1 {
			t.Errorf("create did not set version 1, got %d", app.Version)
		}

		loaded, err := store.Load(ctx, app.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded.Version != 1 || loaded.Status != loan.StatusCreated {
			t.Errorf("unexpected snapshot: version=%d status=%s", loaded.Version, loaded.Status)
		}
		if loaded.Personal.FirstName != "Iris" {
			t.Errorf("snapshot data lost: %+v", loaded.Personal)
		}
	})

	t.Run("commit transition bumps version", func(t *testing.T) {
		app := newTestApplication("LOAN-20260828-TEST0002")
		if err := store.Create(ctx, app, nil); err != nil {
			t.Fatalf("create: %v", err)
		}

		app.Status = loan.StatusValidating
		app.UpdatedAt = time.Now().UTC()
		entry := loan.AuditLogEntry{
			ID: "t1", Actor: "system", Action: "transition",
			FromStatus: loan.StatusCreated, ToStatus: loan.StatusValidating,
		}
		if err := store.CommitTransition(ctx, app.ID, 1, app, []loan.AuditLogEntry{entry}); err != nil {
			t.Fatalf("commit: %v", err)
		}
		if app.Version != 2 {
			t.Errorf("commit did not bump version, got %d", app.Version)
		}

		loaded, err := store.Load(ctx, app.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded.Version != 2 || loaded.Status != loan.StatusValidating {
			t.Errorf("commit not visible: version=%d status=%s", loaded.Version, loaded.Status)
		}
	})

	t.Run("stale version is rejected without side effects", func(t *testing.T) {
		app := newTestApplication("LOAN-20260828-TEST0003")
		if err := store.Create(ctx, app, nil); err != nil {
			t.Fatalf("create: %v", err)
		}

		first := app.Clone()
		first.Status = loan.StatusValidating
		if err := store.CommitTransition(ctx, app.ID, 1, first, nil); err != nil {
			t.Fatalf("first commit: %v", err)
		}

		// Second writer still holds version 1.
		stale := app.Clone()
		stale.Status = loan.StatusValidating
		entry := loan.AuditLogEntry{ID: "stale", Actor: "system", Action: "transition"}
		err := store.CommitTransition(ctx, app.ID, 1, stale, []loan.AuditLogEntry{entry})
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}

		trail, err := store.AuditTrail(ctx, app.ID)
		if err != nil {
			t.Fatalf("audit trail: %v", err)
		}
		for _, e := range trail {
			if e.ID == "stale" {
				t.Error("rejected commit leaked an audit entry")
			}
		}
	})

	t.Run("commit on missing application returns ErrNotFound", func(t *testing.T) {
		app := newTestApplication("LOAN-00000000-MISSING1")
		err := store.CommitTransition(ctx, app.ID, 1, app, nil)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("audit trail is ordered and sequenced", func(t *testing.T) {
		app := newTestApplication("LOAN-20260828-TEST0004")
		if err := store.Create(ctx, app, []loan.AuditLogEntry{intakeEntry(app.ID)}); err != nil {
			t.Fatalf("create: %v", err)
		}

		for i, to := range []loan.Status{loan.StatusValidating, loan.StatusVerifyingDocuments} {
			next := app.Clone()
			next.Status = to
			entry := loan.AuditLogEntry{
				ID: "t" + string(rune('1'+i)), Actor: "system", Action: "transition", ToStatus: to,
			}
			if err := store.CommitTransition(ctx, app.ID, app.Version, next, []loan.AuditLogEntry{entry}); err != nil {
				t.Fatalf("commit %d: %v", i, err)
			}
			app = next
		}

		trail, err := store.AuditTrail(ctx, app.ID)
		if err != nil {
			t.Fatalf("audit trail: %v", err)
		}
		if len(trail) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(trail))
		}
		for i, e := range trail {
			if e.Sequence != int64(i+1) {
				t.Errorf("entry %d has sequence %d", i, e.Sequence)
			}
			if e.ApplicationID != app.ID {
				t.Errorf("entry %d has application %s", i, e.ApplicationID)
			}
		}
	})

	t.Run("list by status", func(t *testing.T) {
		a := newTestApplication("LOAN-20260828-TEST0005")
		b := newTestApplication("LOAN-20260828-TEST0006")
		if err := store.Create(ctx, a, nil); err != nil {
			t.Fatalf("create a: %v", err)
		}
		if err := store.Create(ctx, b, nil); err != nil {
			t.Fatalf("create b: %v", err)
		}

		next := b.Clone()
		next.Status = loan.StatusValidating
		if err := store.CommitTransition(ctx, b.ID, 1, next, nil); err != nil {
			t.Fatalf("commit: %v", err)
		}

		validating, err := store.ListByStatus(ctx, loan.StatusValidating, 10, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		found := false
		for _, app := range validating {
			if app.ID == b.ID {
				found = true
			}
			if app.ID == a.ID {
				t.Error("created application listed under validating")
			}
		}
		if !found {
			t.Error("validating application not listed")
		}
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestSQLiteStoreContract(t *testing.T) {
	store := setupSQLiteStore(t)
	defer store.Close()
	runStoreContract(t, store)
}

func TestSQLiteStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}
