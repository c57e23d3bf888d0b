// Package merkle implements the append-only BLAKE3 commitment tree: leaf
// hashing, proof construction, stateless verification, and manifest
// import/export.
package merkle

import (
	"github.com/zeebo/blake3"

	"github.com/protrace/registry-engine/pkg/models"
)

// LeafHash returns BLAKE3(preimage) for one registered leaf.
func LeafHash(leaf models.Leaf) [32]byte {
	return blake3.Sum256(leaf.Preimage())
}

// nodeHash combines two child hashes into their parent: BLAKE3(left || right).
func nodeHash(left, right [32]byte) [32]byte {
	h := blake3.New()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
