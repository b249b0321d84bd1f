// Package checksum computes content digests for artifact metadata.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. Artifact listings
// expose these digests and conditional downloads compare against them,
// so the encoding must stay stable.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
