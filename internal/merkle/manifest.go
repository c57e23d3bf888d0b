package merkle

import (
	"errors"
	"strconv"

	"github.com/protrace/registry-engine/pkg/models"
)

// ErrManifestRootMismatch is returned by ImportTree when a manifest's
// recorded root does not match the root recomputed from its leaves.
var ErrManifestRootMismatch = errors.New("merkle: manifest root does not match recomputed root")

// ErrManifestMalformed is returned by ImportTree when the manifest's proofs
// map has a key that is not an integer, or carries a duplicate leaf index
// under different string representations (e.g. "01" and "1").
var ErrManifestMalformed = errors.New("merkle: manifest proofs map has an invalid or duplicate leaf index")

// ExportManifest snapshots every leaf, a proof for each one, and the current
// root into a self-contained, serializable manifest.
func (t *Tree) ExportManifest() models.Manifest {
	t.mu.Lock()
	defer t.mu.Unlock()

	proofs := make(map[string][]models.ProofStep, len(t.leaves))
	for i := range t.leaves {
		proof, err := t.proofForLocked(i)
		if err != nil {
			// Every index below len(t.leaves) is in range; proofForLocked
			// cannot fail here.
			continue
		}
		proofs[strconv.Itoa(i)] = proof
	}

	return models.Manifest{
		Leaves:      append([]models.Leaf(nil), t.leaves...),
		RootHash:    t.rootLocked(),
		TotalLeaves: len(t.leaves),
		Proofs:      proofs,
	}
}

// ImportTree rebuilds a Tree from a manifest, rejecting it if a proofs map
// key is not an integer, if the proofs map addresses the same leaf index
// twice, or if the leaves don't recompute to the manifest's recorded root.
func ImportTree(m models.Manifest) (*Tree, error) {
	seen := make(map[int]bool, len(m.Proofs))
	for key := range m.Proofs {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, ErrManifestMalformed
		}
		if seen[index] {
			return nil, ErrManifestMalformed
		}
		seen[index] = true
	}

	t := NewTree()
	t.leaves = append([]models.Leaf(nil), m.Leaves...)
	t.rebuild()
	if t.rootLocked() != m.RootHash {
		return nil, ErrManifestRootMismatch
	}
	return t, nil
}
