// Package backup implements the OTA engine's backup-first apply protocol:
// before any tracked file is overwritten or removed, a copy is placed under
// a backup directory that mirrors the destination tree's relative layout,
// so a failed apply can be reverted byte-for-byte.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kaktoslabs/kaktos/pkg/fsutil"
)

// Manager copies files about to be mutated into Dir, and restores them on
// revert. Files whose extension or path prefix is configured to be skipped
// are still mutated by the caller, just never copied into Dir.
type Manager struct {
	Dir            string
	SkipExtensions map[string]struct{}
	SkipPrefixes   []string
	ChunkSize      int
}

// New builds a Manager rooted at dir. Extensions are matched case
// insensitively and compared including their leading dot.
func New(dir string, skipExtensions, skipPrefixes []string, chunkSize int) *Manager {
	exts := make(map[string]struct{}, len(skipExtensions))
	for _, e := range skipExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	prefixes := make([]string, 0, len(skipPrefixes))
	for _, p := range skipPrefixes {
		p = strings.TrimSpace(p)
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}

	return &Manager{Dir: dir, SkipExtensions: exts, SkipPrefixes: prefixes, ChunkSize: chunkSize}
}

// ShouldSkip reports whether relPath is excluded from backup by extension
// or prefix policy.
func (m *Manager) ShouldSkip(relPath string) bool {
	ext := strings.ToLower(filepath.Ext(relPath))
	if _, skip := m.SkipExtensions[ext]; skip {
		return true
	}
	for _, prefix := range m.SkipPrefixes {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}
	return false
}

// Prepare removes any stale backup directory from a previous attempt and
// creates a fresh one; a backup directory is never reused across attempts.
func (m *Manager) Prepare() error {
	if err := fsutil.RemovePath(m.Dir); err != nil {
		return fmt.Errorf("remove stale backup dir %s: %w", m.Dir, err)
	}
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir %s: %w", m.Dir, err)
	}
	return nil
}

// Backup copies destDir/relPath into the mirrored path under Dir, unless
// the path is skip-listed or the source does not exist. It reports whether
// a copy was made.
func (m *Manager) Backup(destDir, relPath string) (bool, error) {
	if m.ShouldSkip(relPath) {
		return false, nil
	}

	src := filepath.Join(destDir, filepath.FromSlash(relPath))
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", src, err)
	}

	dest := filepath.Join(m.Dir, filepath.FromSlash(relPath))
	if err := fsutil.CopyFileChunked(src, dest, m.ChunkSize); err != nil {
		return false, fmt.Errorf("backup %s: %w", relPath, err)
	}
	return true, nil
}

// Restore walks the backup tree and copies every entry back to its mirrored
// path under destDir, overwriting whatever is there. It fails on the first
// error: a partial, silently-incomplete revert would violate the revert
// completeness guarantee.
func (m *Manager) Restore(destDir string) error {
	rel, err := fsutil.ListRelative(m.Dir)
	if err != nil {
		return fmt.Errorf("list backup tree %s: %w", m.Dir, err)
	}

	for _, r := range rel {
		src := filepath.Join(m.Dir, filepath.FromSlash(r))
		dest := filepath.Join(destDir, filepath.FromSlash(r))
		if err := fsutil.CopyFileChunked(src, dest, m.ChunkSize); err != nil {
			return fmt.Errorf("restore %s: %w", r, err)
		}
	}
	return nil
}

// Teardown removes the backup directory. Safe to call when it does not
// exist.
func (m *Manager) Teardown() error {
	return fsutil.RemovePath(m.Dir)
}

// Exists reports whether the backup directory is present on disk.
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.Dir)
	return err == nil && info.IsDir()
}
