// Package build implements the host-side manifest builder: it scans a
// source tree and produces the manifest.Manifest a device-side Updater
// diffs against.
package build

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kaktoslabs/kaktos/pkg/digest"
	"github.com/kaktoslabs/kaktos/pkg/fsutil"
	"github.com/kaktoslabs/kaktos/pkg/manifest"
)

// VersionSource selects how Builder derives a per-file version string.
type VersionSource string

const (
	// MTime uses the file's modification time, as a Unix timestamp.
	MTime VersionSource = "mtime"
	// GitCommitTime uses the Unix timestamp of the file's last commit,
	// falling back to MTime when git is unavailable or the file is untracked.
	GitCommitTime VersionSource = "git_commit_time"
)

// Builder scans SrcDir and produces a manifest describing every file
// eligible for OTA distribution.
type Builder struct {
	SrcDir string

	AllowedExtensions []string
	ExcludePrefixes   []string
	ExcludeFolders    []string
	FollowSymlinks    bool

	VersionSource VersionSource
	GitExecutable string

	// PreviousManifestPath, when set, is loaded and consulted by
	// ReuseUnchangedVersions.
	PreviousManifestPath string
	// ReuseUnchangedVersions keeps a file's prior version string when its
	// MD5 is unchanged from the previous manifest, rather than recomputing
	// a fresh version from VersionSource.
	ReuseUnchangedVersions bool

	MD5ChunkSize int

	AuthKey        string
	SignatureField string
}

// DefaultAllowedExtensions matches the distributable file types the
// original host tooling scanned for on constrained targets.
var DefaultAllowedExtensions = []string{".py", ".mpy", ".raw", ".rgb565", ".c"}

// DefaultExcludePrefixes skips test modules from the scan by default.
var DefaultExcludePrefixes = []string{"test_"}

// DefaultExcludeFolders skips non-distributable directories by default.
var DefaultExcludeFolders = []string{"__pycache__", "examples", "docs", "tests"}

// NewBuilder returns a Builder over srcDir with every documented default
// applied.
func NewBuilder(srcDir string) *Builder {
	return &Builder{
		SrcDir:            srcDir,
		AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
		ExcludePrefixes:   append([]string(nil), DefaultExcludePrefixes...),
		ExcludeFolders:    append([]string(nil), DefaultExcludeFolders...),
		FollowSymlinks:    true,
		VersionSource:     MTime,
		GitExecutable:     "git",
		SignatureField:    "signature",
		MD5ChunkSize:      digest.DefaultMD5ChunkSize,
	}
}

// Build scans SrcDir and returns the resulting manifest. The manifest's
// top-level version is the numerically greatest per-file version among its
// entries (see globalVersion), or "0" when the tree has no eligible files.
func (b *Builder) Build() (manifest.Manifest, error) {
	previous := manifest.Empty()
	if b.PreviousManifestPath != "" {
		if data, err := os.ReadFile(b.PreviousManifestPath); err == nil {
			if loaded, _, err := manifest.Parse(data, b.signatureField()); err == nil {
				previous = loaded
			}
		}
	}

	allowed := make(map[string]struct{}, len(b.AllowedExtensions))
	for _, ext := range b.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	excludeFolders := make(map[string]struct{}, len(b.ExcludeFolders))
	for _, f := range b.ExcludeFolders {
		excludeFolders[f] = struct{}{}
	}

	files := map[string]manifest.Entry{}
	walkErr := filepath.Walk(b.SrcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != b.SrcDir {
				if _, skip := excludeFolders[info.Name()]; skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 && !b.FollowSymlinks {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := allowed[ext]; !ok {
			return nil
		}
		name := info.Name()
		for _, prefix := range b.ExcludePrefixes {
			if strings.HasPrefix(name, prefix) {
				return nil
			}
		}

		rel, err := filepath.Rel(b.SrcDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		md5sum, err := digest.MD5File(path, b.MD5ChunkSize)
		if err != nil {
			return fmt.Errorf("hash %s: %w", path, err)
		}

		version := b.versionFor(path, rel, md5sum, previous)
		files[rel] = manifest.Entry{Path: rel, Version: version, MD5: md5sum}
		return nil
	})
	if walkErr != nil {
		return manifest.Manifest{}, fmt.Errorf("scan %s: %w", b.SrcDir, walkErr)
	}

	m := manifest.Manifest{Version: globalVersion(files), Files: files}
	return m, nil
}

// versionFor returns the version string for one file: the prior manifest's
// version when ReuseUnchangedVersions is set and the MD5 is unchanged,
// otherwise a fresh value from VersionSource.
func (b *Builder) versionFor(path, rel, md5sum string, previous manifest.Manifest) string {
	if b.ReuseUnchangedVersions {
		if prev, ok := previous.Files[rel]; ok && prev.MD5 == md5sum {
			return prev.Version
		}
	}
	return strconv.FormatInt(b.fileVersion(path), 10)
}

func (b *Builder) fileVersion(path string) int64 {
	if b.VersionSource == GitCommitTime {
		if ts, err := b.gitCommitTimestamp(path); err == nil {
			return ts
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}

func (b *Builder) gitCommitTimestamp(path string) (int64, error) {
	git := b.GitExecutable
	if git == "" {
		git = "git"
	}
	out, err := exec.Command(git, "log", "-1", "--format=%ct", path).Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
}

func (b *Builder) signatureField() string {
	if b.SignatureField == "" {
		return "signature"
	}
	return b.SignatureField
}

// globalVersion returns the numerically greatest version among files, or
// "0" when files is empty. Builder only ever produces decimal-formatted
// timestamps or carried-forward prior versions, so a numeric comparison
// is safe despite the opaque-string manifest wire format.
func globalVersion(files map[string]manifest.Entry) string {
	var max int64
	var found bool
	for _, entry := range files {
		n, err := strconv.ParseInt(entry.Version, 10, 64)
		if err != nil {
			continue
		}
		if !found || n > max {
			max, found = n, true
		}
	}
	if !found {
		return "0"
	}
	return strconv.FormatInt(max, 10)
}

// Generate builds the manifest and serializes it, signing it when AuthKey
// is set.
func (b *Builder) Generate() ([]byte, error) {
	m, err := b.Build()
	if err != nil {
		return nil, err
	}
	var key []byte
	if b.AuthKey != "" {
		key = []byte(b.AuthKey)
	}
	return manifest.Marshal(m, b.signatureField(), key)
}

// WriteManifest builds, serializes, and atomically writes the manifest to
// outputPath, returning the manifest it wrote.
func (b *Builder) WriteManifest(outputPath string) (manifest.Manifest, error) {
	m, err := b.Build()
	if err != nil {
		return manifest.Manifest{}, err
	}
	var key []byte
	if b.AuthKey != "" {
		key = []byte(b.AuthKey)
	}
	data, err := manifest.Marshal(m, b.signatureField(), key)
	if err != nil {
		return manifest.Manifest{}, err
	}
	if err := fsutil.WriteFileAtomic(outputPath, data, 0o644); err != nil {
		return manifest.Manifest{}, fmt.Errorf("write manifest %s: %w", outputPath, err)
	}
	return m, nil
}
