// Package hash fingerprints content sent to a target.
//
// Script results carry the SHA-256 of the body that was streamed, so a
// deployment result records which revision of each script ran.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex encoded SHA-256 of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
