package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPendingFilesSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_reports.sql", "001_payroll.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	versions, err := pendingFiles(dir)
	if err != nil {
		t.Fatalf("pendingFiles: %v", err)
	}
	if len(versions) != 2 || versions[0] != "001_payroll" || versions[1] != "002_reports" {
		t.Fatalf("unexpected versions: %v", versions)
	}
}

func TestPendingFilesMissingDir(t *testing.T) {
	if _, err := pendingFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
