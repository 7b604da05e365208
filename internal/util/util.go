// Package util provides content hashing, excerpt generation and front matter parsing.
package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex-encoded sha256 digest of content. It is the
// deduplication key for post bodies, so it must stay deterministic.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}
