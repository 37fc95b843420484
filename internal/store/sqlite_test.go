package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) Settings {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return s
}

func TestAutoInitializeDefaultsToFalse(t *testing.T) {
	s := newTestStore(t)

	v, err := s.AutoInitialize(context.Background())
	if err != nil {
		t.Fatalf("AutoInitialize failed: %v", err)
	}
	if v {
		t.Error("Expected false with no stored flag")
	}
}

func TestSetAutoInitializeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetAutoInitialize(ctx, true); err != nil {
		t.Fatalf("SetAutoInitialize failed: %v", err)
	}
	v, err := s.AutoInitialize(ctx)
	if err != nil {
		t.Fatalf("AutoInitialize failed: %v", err)
	}
	if !v {
		t.Error("Expected true after setting")
	}

	// Overwrite works.
	if err := s.SetAutoInitialize(ctx, false); err != nil {
		t.Fatalf("SetAutoInitialize failed: %v", err)
	}
	v, err = s.AutoInitialize(ctx)
	if err != nil {
		t.Fatalf("AutoInitialize failed: %v", err)
	}
	if v {
		t.Error("Expected false after overwrite")
	}
}

func TestFlagSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	ctx := context.Background()

	s1, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s1.SetAutoInitialize(ctx, true); err != nil {
		t.Fatalf("SetAutoInitialize failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s2.Close()

	v, err := s2.AutoInitialize(ctx)
	if err != nil {
		t.Fatalf("AutoInitialize failed: %v", err)
	}
	if !v {
		t.Error("Expected flag to survive reopen")
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
