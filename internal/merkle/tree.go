package merkle

import (
	"errors"
	"sync"

	"github.com/protrace/registry-engine/pkg/models"
)

// ErrOutOfRange is returned when a proof is requested for a leaf index that
// does not exist.
var ErrOutOfRange = errors.New("merkle: leaf index out of range")

// ErrEmpty is returned when the root of an empty tree is requested.
var ErrEmpty = errors.New("merkle: root requested on an empty tree")

// Tree is an append-only BLAKE3 Merkle tree over registered leaves. Every
// exported method takes the tree's own mutex, the same discipline the
// reference websocket hub uses around its client map; internal/registry
// additionally holds its own lock around Append so its candidate list and
// the tree change together.
type Tree struct {
	mu     sync.Mutex
	leaves []models.Leaf
	levels [][][32]byte // levels[0] = leaf hashes, levels[len-1] = root level
}

// NewTree returns an empty commitment tree.
func NewTree() *Tree {
	return &Tree{}
}

// Append adds a new leaf and recomputes the tree. It returns the leaf's
// assigned index.
func (t *Tree) Append(leaf models.Leaf) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf.Index = len(t.leaves)
	t.leaves = append(t.leaves, leaf)
	t.rebuild()
	return leaf.Index
}

// RemoveLast drops the most recently appended leaf and recomputes the tree.
// It exists solely so a caller can roll back an Append whose persistence
// hook failed afterward; it must never be called concurrently with other
// leaf reads that assume monotonic growth mid-call.
func (t *Tree) RemoveLast() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.leaves) == 0 {
		return
	}
	t.leaves = t.leaves[:len(t.leaves)-1]
	t.rebuild()
}

// Len reports how many leaves have been appended.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.leaves)
}

// Leaves returns a copy of every registered leaf, in registration order.
func (t *Tree) Leaves() []models.Leaf {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Leaf, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// Root returns the current commitment root, or ErrEmpty if no leaf has been
// appended yet.
func (t *Tree) Root() ([32]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.leaves) == 0 {
		return [32]byte{}, ErrEmpty
	}
	return t.rootLocked(), nil
}

// rootLocked returns the current root without the empty-tree check Root
// enforces; it assumes t.mu is already held and is used internally where an
// empty tree is a legitimate starting state (manifest export/import).
func (t *Tree) rootLocked() [32]byte {
	if len(t.levels) == 0 {
		return [32]byte{}
	}
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return [32]byte{}
	}
	return top[0]
}

// ProofFor returns the ordered sibling path from leaf index to the root.
func (t *Tree) ProofFor(index int) ([]models.ProofStep, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proofForLocked(index)
}

// proofForLocked assumes t.mu is already held; ExportManifest uses this
// directly to build every leaf's proof without re-entering the mutex.
func (t *Tree) proofForLocked(index int) ([]models.ProofStep, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, ErrOutOfRange
	}

	var proof []models.ProofStep
	current := index
	for lvl := 0; lvl < len(t.levels)-1; lvl++ {
		level := t.levels[lvl]
		isLastOdd := len(level)%2 == 1 && current == len(level)-1

		switch {
		case isLastOdd:
			proof = append(proof, models.ProofStep{Sibling: level[current], Side: models.SideRight})
		case current%2 == 0:
			proof = append(proof, models.ProofStep{Sibling: level[current+1], Side: models.SideRight})
		default:
			proof = append(proof, models.ProofStep{Sibling: level[current-1], Side: models.SideLeft})
		}
		current /= 2
	}
	return proof, nil
}

// rebuild recomputes every level bottom-up from the current leaf set. Odd
// levels self-pair their final node instead of being padded in place, so the
// stored level slices always hold exactly one hash per real node.
func (t *Tree) rebuild() {
	if len(t.leaves) == 0 {
		t.levels = nil
		return
	}

	leafHashes := make([][32]byte, len(t.leaves))
	for i, leaf := range t.leaves {
		leafHashes[i] = LeafHash(leaf)
	}

	levels := [][][32]byte{leafHashes}
	current := leafHashes
	for len(current) > 1 {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, nodeHash(current[i], current[i+1]))
			} else {
				next = append(next, nodeHash(current[i], current[i]))
			}
		}
		levels = append(levels, next)
		current = next
	}
	t.levels = levels
}
