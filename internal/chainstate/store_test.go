package chainstate

import (
	"bytes"
	"testing"
)

// openTestStore opens a store in a temp directory and closes it with the test.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	return s
}

// TestEpochAndRootRoundTrip tests the cached metadata accessors.
func TestEpochAndRootRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if got := s.CurrentEpoch(); got != 0 {
		t.Errorf("fresh store epoch: got %d, want 0", got)
	}

	if err := s.SetCurrentEpoch(42); err != nil {
		t.Fatalf("set epoch: %v", err)
	}

	root := [32]byte{0xDE, 0xAD}
	if err := s.SetStateRoot(root); err != nil {
		t.Fatalf("set root: %v", err)
	}

	if got := s.CurrentEpoch(); got != 42 {
		t.Errorf("epoch: got %d, want 42", got)
	}

	if got := s.StateRoot(); got != root {
		t.Errorf("root: got %x, want %x", got, root)
	}
}

// TestMetadataSurvivesReopen tests that cached values are restored from disk.
func TestMetadataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	root := [32]byte{0x01, 0x02, 0x03}
	if err := s.SetCurrentEpoch(7); err != nil {
		t.Fatalf("set epoch: %v", err)
	}
	if err := s.SetStateRoot(root); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if got := reopened.CurrentEpoch(); got != 7 {
		t.Errorf("epoch after reopen: got %d, want 7", got)
	}
	if got := reopened.StateRoot(); got != root {
		t.Errorf("root after reopen: got %x, want %x", got, root)
	}
}

// TestFallbackBlockArchive tests the compressed archive round trip.
func TestFallbackBlockArchive(t *testing.T) {
	s := openTestStore(t)

	raw := bytes.Repeat([]byte("fallback block bytes "), 50)

	if err := s.ArchiveFallbackBlock(3, 1, raw); err != nil {
		t.Fatalf("archive: %v", err)
	}

	got, err := s.FallbackBlock(3, 1)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}

	if !bytes.Equal(got, raw) {
		t.Error("archived block does not round trip")
	}

	// Different epoch or shard is a distinct entry.
	if got, err := s.FallbackBlock(3, 2); err != nil || got != nil {
		t.Errorf("missing entry: got %v, %v", got, err)
	}
	if got, err := s.FallbackBlock(4, 1); err != nil || got != nil {
		t.Errorf("missing entry: got %v, %v", got, err)
	}
}
