package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileTokenStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sloka-session-test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	s := NewFileTokenStore(filepath.Join(tmpDir, "nested", "state.json"))

	// Missing file is an empty session
	tok, err := s.Load()
	if err != nil || tok != "" {
		t.Fatalf("expected empty load, got %q, %v", tok, err)
	}

	if err := s.Save("abc.def.ghi"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(s.Path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600, got %o", perm)
	}

	tok, err = s.Load()
	if err != nil || tok != "abc.def.ghi" {
		t.Fatalf("expected saved token, got %q, %v", tok, err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(s.Path); !os.IsNotExist(err) {
		t.Error("expected state file to be removed")
	}
	// Clearing twice is fine
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}

func TestFileTokenStore_Corrupt(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileTokenStore(path).Load(); err == nil {
		t.Error("expected error for corrupt state")
	}
}
