// Package manifest implements the manifest wire format the OTA engine is
// driven by: a version string, a mapping of relative file paths to per-file
// versions and MD5s, and an optional HMAC-SHA256 manifest-level signature.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Entry describes one file tracked by a manifest.
type Entry struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	MD5     string `json:"md5,omitempty"`
}

// Manifest is the parsed, immutable-after-construction manifest document.
type Manifest struct {
	Version string           `json:"version"`
	Files   map[string]Entry `json:"files"`
}

// Empty returns the zero-value manifest used when no local manifest exists
// yet: an empty version string and no tracked files.
func Empty() Manifest {
	return Manifest{Files: map[string]Entry{}}
}

// SortedPaths returns the manifest's file paths in the manifest's stable
// serialization order, which this implementation defines as lexicographic
// by path (matching the order the host-side builder writes entries in).
func (m Manifest) SortedPaths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// NewerThan reports whether m should be applied over local: any version
// difference, or equality combined with a forced update. Matches the
// spec's documented current behavior rather than an upgrade-only gate.
func (m Manifest) NewerThan(local Manifest, force bool) bool {
	if m.Version != local.Version {
		return true
	}
	return force
}

// ValidatePath reports whether rel is a well-formed relative POSIX path:
// non-empty, not absolute, and unable to climb above its root via "..".
func ValidatePath(rel string) error {
	if rel == "" {
		return fmt.Errorf("manifest entry path is empty")
	}
	if strings.HasPrefix(rel, "/") {
		return fmt.Errorf("manifest entry path %q must not be absolute", rel)
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return fmt.Errorf("manifest entry path %q escapes its root", rel)
		}
	}
	return nil
}

func validateMD5(md5 string) error {
	if md5 == "" {
		return nil
	}
	if len(md5) != 32 {
		return fmt.Errorf("md5 %q is not 32 hex characters", md5)
	}
	if strings.ToLower(md5) != md5 {
		return fmt.Errorf("md5 %q is not lowercase", md5)
	}
	if _, err := hex.DecodeString(md5); err != nil {
		return fmt.Errorf("md5 %q is not valid hex: %w", md5, err)
	}
	return nil
}

// Validate checks structural invariants of a parsed manifest: every entry's
// path is contained and well-formed, and matches the map key it is stored
// under, and every present MD5 is 32 lowercase hex characters.
func (m Manifest) Validate() error {
	for key, entry := range m.Files {
		if err := ValidatePath(key); err != nil {
			return err
		}
		if entry.Path != "" && entry.Path != key {
			return fmt.Errorf("manifest entry key %q does not match its path field %q", key, entry.Path)
		}
		if err := validateMD5(entry.MD5); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// Marshal serializes the manifest, optionally attaching a hex HMAC-SHA256
// signature under signatureField. An empty key skips signing.
func Marshal(m Manifest, signatureField string, key []byte) ([]byte, error) {
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if len(key) == 0 {
		return body, nil
	}

	field := signatureField
	if field == "" {
		field = "signature"
	}

	sig, err := Sign(body, field, key)
	if err != nil {
		return nil, err
	}

	var withSig map[string]any
	if err := json.Unmarshal(body, &withSig); err != nil {
		return nil, fmt.Errorf("re-parse manifest for signing: %w", err)
	}
	withSig[field] = sig

	signed, err := json.MarshalIndent(withSig, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal signed manifest: %w", err)
	}
	return signed, nil
}

// Parse decodes manifest bytes and extracts the value of signatureField (if
// present), without requiring the field to be a fixed struct member — its
// name is configurable.
func Parse(data []byte, signatureField string) (Manifest, string, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, "", fmt.Errorf("decode manifest: %w", err)
	}
	if m.Files == nil {
		m.Files = map[string]Entry{}
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, "", err
	}

	field := signatureField
	if field == "" {
		field = "signature"
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Manifest{}, "", fmt.Errorf("decode manifest fields: %w", err)
	}

	var sig string
	if rawSig, ok := raw[field]; ok {
		if err := json.Unmarshal(rawSig, &sig); err != nil {
			return Manifest{}, "", fmt.Errorf("decode manifest signature field %q: %w", field, err)
		}
	}

	return m, sig, nil
}
