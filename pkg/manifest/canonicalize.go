package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/kaktoslabs/kaktos/pkg/digest"
)

// Canonicalize produces the deterministic byte sequence HMAC signatures are
// computed over: the manifest's top-level JSON object with signatureField
// removed, re-encoded compactly with map keys in sorted order. Go's
// encoding/json sorts map[string]any keys alphabetically on Marshal, which
// is the key-ordering rule both device and host agree on.
func Canonicalize(data []byte, signatureField string) ([]byte, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode manifest for canonicalization: %w", err)
	}

	field := signatureField
	if field == "" {
		field = "signature"
	}
	delete(raw, field)

	canonical, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode canonical manifest: %w", err)
	}
	return canonical, nil
}

// Sign returns the lowercase hex HMAC-SHA256 over the canonicalized form of
// data, under key.
func Sign(data []byte, signatureField string, key []byte) (string, error) {
	canonical, err := Canonicalize(data, signatureField)
	if err != nil {
		return "", err
	}
	return digest.HMACSHA256Hex(key, canonical), nil
}

// Verify reports whether sig is the correct HMAC-SHA256 over data's
// canonicalized form under key. A missing or malformed sig is a mismatch,
// not an error.
func Verify(data []byte, signatureField, sig string, key []byte) (bool, error) {
	if sig == "" {
		return false, nil
	}
	expected, err := Sign(data, signatureField, key)
	if err != nil {
		return false, err
	}
	return digest.EqualHex(expected, sig), nil
}
