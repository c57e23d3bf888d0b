package merkle

import (
	"strconv"
	"testing"

	"github.com/protrace/registry-engine/pkg/models"
)

func mustDNA(t *testing.T, seed byte) models.DNA {
	t.Helper()
	var d models.DNA
	for i := range d {
		d[i] = seed + byte(i)
	}
	return d
}

func leafFor(t *testing.T, seed byte, pointer string) models.Leaf {
	return models.Leaf{
		DNA:        mustDNA(t, seed),
		Pointer:    pointer,
		PlatformID: "test",
		Timestamp:  1700000000 + int64(seed),
	}
}

func mustRoot(t *testing.T, tree *Tree) [32]byte {
	t.Helper()
	root, err := tree.Root()
	if err != nil {
		t.Fatalf("unexpected error reading root: %v", err)
	}
	return root
}

func TestTree_EmptyRootFails(t *testing.T) {
	tree := NewTree()
	if _, err := tree.Root(); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty for an empty tree, got %v", err)
	}
}

func TestTree_RootIsDeterministic(t *testing.T) {
	a := NewTree()
	b := NewTree()

	for i := byte(0); i < 5; i++ {
		leaf := leafFor(t, i, "p")
		a.Append(leaf)
		b.Append(leaf)
	}

	if mustRoot(t, a) != mustRoot(t, b) {
		t.Fatal("two trees built from the same leaves in the same order must share a root")
	}
}

func TestTree_AppendChangesRoot(t *testing.T) {
	tree := NewTree()
	tree.Append(leafFor(t, 1, "a"))
	first := mustRoot(t, tree)

	tree.Append(leafFor(t, 2, "b"))
	second := mustRoot(t, tree)

	if first == second {
		t.Fatal("appending a new leaf must change the root")
	}
}

func TestTree_ProofVerifiesForEveryLeaf(t *testing.T) {
	counts := []int{1, 2, 3, 4, 5, 7, 8}
	for _, n := range counts {
		tree := NewTree()
		leaves := make([]models.Leaf, n)
		for i := 0; i < n; i++ {
			leaves[i] = leafFor(t, byte(i), "p")
			tree.Append(leaves[i])
		}
		root := mustRoot(t, tree)

		for i := 0; i < n; i++ {
			proof, err := tree.ProofFor(i)
			if err != nil {
				t.Fatalf("n=%d leaf=%d: unexpected error: %v", n, i, err)
			}
			if !VerifyLeaf(leaves[i], proof, root) {
				t.Fatalf("n=%d leaf=%d: proof failed to verify against root", n, i)
			}
		}
	}
}

func TestTree_ProofFailsOnTamperedLeaf(t *testing.T) {
	tree := NewTree()
	leaves := []models.Leaf{leafFor(t, 1, "a"), leafFor(t, 2, "b"), leafFor(t, 3, "c")}
	for _, l := range leaves {
		tree.Append(l)
	}
	root := mustRoot(t, tree)

	proof, err := tree.ProofFor(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tampered := leaves[1]
	tampered.Pointer = "tampered"
	if VerifyLeaf(tampered, proof, root) {
		t.Fatal("a tampered leaf must not verify against the original root")
	}
}

func TestTree_ProofOutOfRange(t *testing.T) {
	tree := NewTree()
	tree.Append(leafFor(t, 1, "a"))

	if _, err := tree.ProofFor(5); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := tree.ProofFor(-1); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	tree := NewTree()
	for i := byte(0); i < 6; i++ {
		tree.Append(leafFor(t, i, "p"))
	}

	manifest := tree.ExportManifest()
	if manifest.TotalLeaves != 6 {
		t.Fatalf("expected totalLeaves=6, got %d", manifest.TotalLeaves)
	}
	if len(manifest.Proofs) != 6 {
		t.Fatalf("expected a proof for every leaf, got %d", len(manifest.Proofs))
	}

	imported, err := ImportTree(manifest)
	if err != nil {
		t.Fatalf("unexpected error importing a well-formed manifest: %v", err)
	}
	if mustRoot(t, imported) != mustRoot(t, tree) {
		t.Fatal("imported tree must share the exported tree's root")
	}
}

func TestManifest_ProofsVerifyAgainstExportedRoot(t *testing.T) {
	tree := NewTree()
	leaves := make([]models.Leaf, 0, 5)
	for i := byte(0); i < 5; i++ {
		leaf := leafFor(t, i, "p")
		tree.Append(leaf)
		leaves = append(leaves, leaf)
	}

	manifest := tree.ExportManifest()
	for i, leaf := range leaves {
		proof, ok := manifest.Proofs[strconv.Itoa(i)]
		if !ok {
			t.Fatalf("missing proof for leaf %d", i)
		}
		if !VerifyLeaf(leaf, proof, manifest.RootHash) {
			t.Fatalf("leaf %d proof from manifest failed to verify", i)
		}
	}
}

func TestManifest_RejectsTamperedRoot(t *testing.T) {
	tree := NewTree()
	tree.Append(leafFor(t, 1, "a"))
	manifest := tree.ExportManifest()
	manifest.RootHash[0] ^= 0xFF

	if _, err := ImportTree(manifest); err != ErrManifestRootMismatch {
		t.Fatalf("expected ErrManifestRootMismatch, got %v", err)
	}
}

func TestManifest_RejectsDuplicateProofIndices(t *testing.T) {
	tree := NewTree()
	tree.Append(leafFor(t, 1, "a"))
	manifest := tree.ExportManifest()

	// "00" and "0" both parse to leaf index 0, so the map addresses the same
	// leaf twice under different string keys.
	manifest.Proofs["00"] = manifest.Proofs["0"]

	if _, err := ImportTree(manifest); err != ErrManifestMalformed {
		t.Fatalf("expected ErrManifestMalformed, got %v", err)
	}
}

func TestTree_RemoveLastUndoesAppend(t *testing.T) {
	tree := NewTree()
	tree.Append(leafFor(t, 1, "a"))
	before := mustRoot(t, tree)
	tree.Append(leafFor(t, 2, "b"))

	tree.RemoveLast()
	if mustRoot(t, tree) != before {
		t.Fatal("removing the last leaf must restore the prior root")
	}
	if tree.Len() != 1 {
		t.Fatalf("expected 1 leaf after rollback, got %d", tree.Len())
	}
}
