package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcherSwapsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "losa.yaml")
	if err := os.WriteFile(path, []byte("validation:\n  dti_ceiling: 0.43\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	swapped := make(chan *Config, 1)
	w, err := NewWatcher(zerolog.Nop(), path, func(cfg *Config) { swapped <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if w.Current().Validation.DTICeiling != 0.43 {
		t.Fatalf("initial DTI ceiling = %v, want 0.43", w.Current().Validation.DTICeiling)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("validation:\n  dti_ceiling: 0.38\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-swapped:
		if cfg.Validation.DTICeiling != 0.38 {
			t.Errorf("swapped DTI ceiling = %v, want 0.38", cfg.Validation.DTICeiling)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("configuration swap never arrived")
	}
	if w.Current().Validation.DTICeiling != 0.38 {
		t.Errorf("Current() DTI ceiling = %v, want 0.38", w.Current().Validation.DTICeiling)
	}
}

func TestWatcherKeepsPreviousOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "losa.yaml")
	if err := os.WriteFile(path, []byte("validation:\n  dti_ceiling: 0.43\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	swapped := make(chan *Config, 1)
	w, err := NewWatcher(zerolog.Nop(), path, func(cfg *Config) { swapped <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Stop()

	// A DTI ceiling over 1 fails validation; the previous snapshot
	// must stay active.
	if err := os.WriteFile(path, []byte("validation:\n  dti_ceiling: 1.5\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-swapped:
		t.Fatalf("invalid config was swapped in: %+v", cfg.Validation)
	case <-time.After(1500 * time.Millisecond):
	}
	if w.Current().Validation.DTICeiling != 0.43 {
		t.Errorf("Current() DTI ceiling = %v, want the previous 0.43", w.Current().Validation.DTICeiling)
	}
}

func TestNewWatcherMissingFile(t *testing.T) {
	if _, err := NewWatcher(zerolog.Nop(), filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}
