// Package sha256 computes the content hash stored on each page result.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix names the algorithm in every digest, e.g. "sha256:9f86d0...".
const Prefix = "sha256:"

// Hasher implements crawler.Hasher.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the prefixed hex digest of data. Empty input yields an empty
// string so pages without text carry no hash.
func (h *Hasher) Hash(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:]), nil
}
