package backup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBackupSkipsConfiguredExtensionsAndPrefixes(t *testing.T) {
	t.Parallel()

	destDir := t.TempDir()
	backupDir := filepath.Join(t.TempDir(), "backup")

	mustWrite(t, filepath.Join(destDir, "a.py"), "print(1)\n")
	mustWrite(t, filepath.Join(destDir, "logo.png"), "binary")
	mustWrite(t, filepath.Join(destDir, "assets", "tree.raw"), "binary")

	m := New(backupDir, []string{".png"}, []string{"assets/"}, 512)
	if err := m.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	backedUp, err := m.Backup(destDir, "a.py")
	if err != nil || !backedUp {
		t.Fatalf("Backup(a.py) = %v, %v", backedUp, err)
	}
	backedUp, err = m.Backup(destDir, "logo.png")
	if err != nil || backedUp {
		t.Fatalf("Backup(logo.png) should be skipped, got %v, %v", backedUp, err)
	}
	backedUp, err = m.Backup(destDir, "assets/tree.raw")
	if err != nil || backedUp {
		t.Fatalf("Backup(assets/tree.raw) should be skipped, got %v, %v", backedUp, err)
	}

	if _, err := os.Stat(filepath.Join(backupDir, "a.py")); err != nil {
		t.Fatalf("expected backup of a.py to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(backupDir, "logo.png")); !os.IsNotExist(err) {
		t.Fatalf("expected no backup of logo.png, got err=%v", err)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	destDir := t.TempDir()
	backupDir := filepath.Join(t.TempDir(), "backup")

	original := "print(1)\n"
	target := filepath.Join(destDir, "a.py")
	mustWrite(t, target, original)

	m := New(backupDir, nil, nil, 4)
	if err := m.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := m.Backup(destDir, "a.py"); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	mustWrite(t, target, "corrupted")

	if err := m.Restore(destDir); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(got) != original {
		t.Fatalf("restored content = %q, want %q", got, original)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
