package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex SHA-256 of the given parts. Parts are NUL separated so
// ("ab", "c") and ("a", "bc") hash differently.
func Hash(parts ...string) string {
	hasher := sha256.New()
	for i, p := range parts {
		if i > 0 {
			hasher.Write([]byte{0})
		}
		hasher.Write([]byte(p))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
