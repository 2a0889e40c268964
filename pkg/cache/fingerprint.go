package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint derives the cache identifier of a request-describing key.
//
// The key is serialised to canonical JSON (object members sorted by name)
// and digested with SHA-256. Two keys that marshal to structurally equal
// JSON always share a fingerprint, regardless of struct field order or map
// iteration order.
func Fingerprint(key any) (string, error) {
	canonical, err := canonicalJSON(key)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON marshals v, decodes it back into generic values and marshals
// it again. encoding/json writes map keys in sorted order, so the second pass
// erases any field ordering carried by the original Go type.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal cache key: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode cache key: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize cache key: %w", err)
	}
	return canonical, nil
}
