package state

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingIsIdle(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "ota_state.txt"))
	v, recognized, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v != Idle || !recognized {
		t.Fatalf("Load() = %v, %v, want Idle, true", v, recognized)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "ota_state.txt"))
	if err := s.Save(ConfirmPending); err != nil {
		t.Fatalf("Save: %v", err)
	}

	v, recognized, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v != ConfirmPending || !recognized {
		t.Fatalf("Load() = %v, %v, want ConfirmPending, true", v, recognized)
	}
}

func TestLoadUnrecognizedContentIsIdle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ota_state.txt")
	s := New(path)
	if err := s.Save(State("garbage")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	v, recognized, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v != Idle || recognized {
		t.Fatalf("Load() = %v, %v, want Idle, false", v, recognized)
	}
}
