package merkle

import "github.com/protrace/registry-engine/pkg/models"

// Verify replays a proof against a leaf hash and reports whether it
// recombines to root. It needs no Tree instance — any holder of a leaf,
// its proof, and a claimed root can check membership independently.
func Verify(leafHash [32]byte, proof []models.ProofStep, root [32]byte) bool {
	current := leafHash
	for _, step := range proof {
		switch step.Side {
		case models.SideRight:
			current = nodeHash(current, step.Sibling)
		case models.SideLeft:
			current = nodeHash(step.Sibling, current)
		}
	}
	return current == root
}

// VerifyLeaf is a convenience wrapper that hashes leaf before verifying.
func VerifyLeaf(leaf models.Leaf, proof []models.ProofStep, root [32]byte) bool {
	return Verify(LeafHash(leaf), proof, root)
}
