package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// StableHash returns a SHA-256 hex digest of the JSON form of v. Map keys
// are encoded in sorted order, so equal maps hash equally. Task identities
// and memo keys are derived from it.
func StableHash(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortHash is StableHash truncated to n hex characters.
func ShortHash(v any, n int) string {
	h := StableHash(v)
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[:n]
}
