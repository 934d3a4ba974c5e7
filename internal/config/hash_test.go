package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeBlake3Hash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.yaml")
	if err := os.WriteFile(path, []byte("service:\n  listen: x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h1, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash() error = %v", err)
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}

	h2, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash() error = %v", err)
	}
	if h1 != h2 {
		t.Error("hash must be deterministic")
	}
}

func TestLockAndCheckIntegrity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("service:\n  listen: '127.0.0.1:5000'\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Unlocked config fails the check.
	if err := CheckIntegrity(path); err == nil {
		t.Fatal("CheckIntegrity() should fail before lock")
	}

	if err := Lock(path); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".checksums")); err != nil {
		t.Fatalf("checksums manifest not written: %v", err)
	}

	if err := CheckIntegrity(path); err != nil {
		t.Fatalf("CheckIntegrity() error = %v", err)
	}

	// Tampering is detected.
	if err := os.WriteFile(path, []byte("service:\n  listen: '0.0.0.0:9999'\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := CheckIntegrity(path)
	if err == nil {
		t.Fatal("CheckIntegrity() should detect the edit")
	}
	if !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("error = %v, want hash mismatch", err)
	}

	// Re-locking authorizes the new state.
	if err := Lock(path); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := CheckIntegrity(path); err != nil {
		t.Fatalf("CheckIntegrity() after re-lock error = %v", err)
	}
}
