package build

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/kaktoslabs/kaktos/pkg/manifest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBuildCollectsAllowedExtensionsOnly(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.py"), "print(1)\n")
	writeFile(t, filepath.Join(src, "b.txt"), "not distributed\n")
	writeFile(t, filepath.Join(src, "data.raw"), "\x00\x01")

	b := NewBuilder(src)
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := m.Files["a.py"]; !ok {
		t.Fatalf("expected a.py in manifest, got %v", m.Files)
	}
	if _, ok := m.Files["data.raw"]; !ok {
		t.Fatalf("expected data.raw in manifest, got %v", m.Files)
	}
	if _, ok := m.Files["b.txt"]; ok {
		t.Fatalf("did not expect b.txt in manifest: %v", m.Files)
	}
}

func TestBuildSkipsExcludedPrefixesAndFolders(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "main.py"), "print(1)\n")
	writeFile(t, filepath.Join(src, "test_main.py"), "print(2)\n")
	writeFile(t, filepath.Join(src, "__pycache__", "main.cpython.py"), "print(3)\n")

	b := NewBuilder(src)
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := m.Files["main.py"]; !ok {
		t.Fatalf("expected main.py in manifest")
	}
	if len(m.Files) != 1 {
		t.Fatalf("expected only main.py, got %v", m.Files)
	}
}

func TestBuildGlobalVersionIsMaxFileVersion(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.py"), "a\n")
	writeFile(t, filepath.Join(src, "b.py"), "b\n")

	b := NewBuilder(src)
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	globalVer, err := strconv.ParseInt(m.Version, 10, 64)
	if err != nil {
		t.Fatalf("global version %q is not numeric: %v", m.Version, err)
	}
	if globalVer == 0 {
		t.Fatalf("expected a non-zero global version")
	}
	for path, entry := range m.Files {
		ver, err := strconv.ParseInt(entry.Version, 10, 64)
		if err != nil {
			t.Fatalf("file %s version %q is not numeric: %v", path, entry.Version, err)
		}
		if ver > globalVer {
			t.Fatalf("global version %d is not the max of file versions (found %d for %s)", globalVer, ver, path)
		}
	}
}

func TestReuseUnchangedVersionsKeepsPriorVersionWhenMD5Matches(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.py"), "print(1)\n")

	b := NewBuilder(src)
	first, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	prevPath := filepath.Join(t.TempDir(), "versions.json")
	data, err := manifest.Marshal(first, "signature", nil)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(prevPath, data, 0o644); err != nil {
		t.Fatalf("write previous manifest: %v", err)
	}

	b2 := NewBuilder(src)
	b2.PreviousManifestPath = prevPath
	b2.ReuseUnchangedVersions = true
	second, err := b2.Build()
	if err != nil {
		t.Fatalf("Build (second): %v", err)
	}

	if second.Files["a.py"].Version != first.Files["a.py"].Version {
		t.Fatalf("expected reused version %q, got %q", first.Files["a.py"].Version, second.Files["a.py"].Version)
	}
}

func TestReuseUnchangedVersionsRecomputesOnMD5Change(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	path := filepath.Join(src, "a.py")
	writeFile(t, path, "print(1)\n")

	b := NewBuilder(src)
	first, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// A sentinel prior version that no mtime can produce, so a reused
	// version is distinguishable from a recomputed one.
	prior := first.Files["a.py"]
	prior.Version = "1"
	first.Files["a.py"] = prior
	prevPath := filepath.Join(t.TempDir(), "versions.json")
	data, err := manifest.Marshal(first, "signature", nil)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(prevPath, data, 0o644); err != nil {
		t.Fatalf("write previous manifest: %v", err)
	}

	writeFile(t, path, "print(2)\n")

	b2 := NewBuilder(src)
	b2.PreviousManifestPath = prevPath
	b2.ReuseUnchangedVersions = true
	second, err := b2.Build()
	if err != nil {
		t.Fatalf("Build (second): %v", err)
	}

	if second.Files["a.py"].MD5 == first.Files["a.py"].MD5 {
		t.Fatalf("expected md5 to change after editing file content")
	}
	if second.Files["a.py"].Version == "1" {
		t.Fatalf("expected a recomputed version after the md5 changed, got the prior version %q", second.Files["a.py"].Version)
	}
}

func TestWriteManifestSignsWhenAuthKeySet(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.py"), "print(1)\n")

	b := NewBuilder(src)
	b.AuthKey = "topsecret"

	out := filepath.Join(t.TempDir(), "versions.json")
	if _, err := b.WriteManifest(out); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	m, sig, err := manifest.Parse(data, "signature")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sig == "" {
		t.Fatalf("expected a non-empty signature")
	}
	ok, err := manifest.Verify(data, "signature", sig, []byte("topsecret"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}
	if _, exists := m.Files["a.py"]; !exists {
		t.Fatalf("expected a.py in written manifest")
	}
}
