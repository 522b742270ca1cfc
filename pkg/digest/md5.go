// Package digest provides the streaming MD5 and HMAC-SHA256 primitives the
// manifest and downloader use for per-file and per-manifest integrity
// checks, plus a SHA-256 ETag helper for the dev file server.
package digest

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DefaultMD5ChunkSize matches the default of the md5_chunk_size config option.
const DefaultMD5ChunkSize = 512

// MD5Stream hashes r in chunks of chunkSize bytes and returns the lowercase
// hex digest, used for per-file manifest integrity checks where MD5 is
// chosen over SHA-256 for speed on constrained hardware.
func MD5Stream(r io.Reader, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultMD5ChunkSize
	}

	h := md5.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MD5File hashes the file at path in chunks of chunkSize bytes.
func MD5File(path string, chunkSize int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := MD5Stream(f, chunkSize)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// TeeMD5Writer wraps an io.Writer, hashing every byte written to it so a
// downloader can compute a file's MD5 during the same pass that writes it,
// without a second read of the finished file.
type TeeMD5Writer struct {
	w io.Writer
	h interface {
		io.Writer
		Sum([]byte) []byte
	}
}

// NewTeeMD5Writer returns a writer that forwards to w while hashing.
func NewTeeMD5Writer(w io.Writer) *TeeMD5Writer {
	return &TeeMD5Writer{w: w, h: md5.New()}
}

func (t *TeeMD5Writer) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.h.Write(p[:n])
	}
	return n, err
}

// Sum returns the lowercase hex MD5 of everything written so far.
func (t *TeeMD5Writer) Sum() string {
	return hex.EncodeToString(t.h.Sum(nil))
}

// HMACSHA256Hex returns the lowercase hex HMAC-SHA256 of data under key.
func HMACSHA256Hex(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// EqualHex does a constant-time comparison of two hex-encoded digests so
// signature checks aren't a timing oracle.
func EqualHex(a, b string) bool {
	da, errA := hex.DecodeString(a)
	db, errB := hex.DecodeString(b)
	if errA != nil || errB != nil {
		return false
	}
	return hmac.Equal(da, db)
}
