package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ETagFor returns a hex SHA-256 content hash of the regular file at path,
// suitable for use as an HTTP ETag by the dev server. It only handles
// regular files, since that's all the file route ever serves; callers are
// expected to have already rejected directories and missing paths.
func ETagFor(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
