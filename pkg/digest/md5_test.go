package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func mustCreate(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestMD5FileMatchesKnownDigest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	if err := writeTestFile(path, "print(1)\n"); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	sum, err := MD5File(path, 4)
	if err != nil {
		t.Fatalf("MD5File: %v", err)
	}

	const want = "dee5c46989f5ec092311188f4fe829c3"
	if sum != want {
		t.Fatalf("MD5File = %q, want %q", sum, want)
	}
}

func TestTeeMD5WriterMatchesMD5File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	tee := NewTeeMD5Writer(mustCreate(t, path))
	if _, err := tee.Write([]byte("hello world")); err != nil {
		t.Fatalf("write: %v", err)
	}

	direct, err := MD5Stream(strings.NewReader("hello world"), 3)
	if err != nil {
		t.Fatalf("MD5Stream: %v", err)
	}

	if tee.Sum() != direct {
		t.Fatalf("tee sum = %q, want %q", tee.Sum(), direct)
	}
}

func TestEqualHexToleratesCase(t *testing.T) {
	t.Parallel()

	if !EqualHex("ABCD", "abcd") {
		t.Fatal("expected case-insensitive equality")
	}
	if EqualHex("abcd", "abce") {
		t.Fatal("expected mismatch to be detected")
	}
}
