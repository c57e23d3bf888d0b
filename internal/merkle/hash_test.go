package merkle

import "testing"

func TestLeafHash_DifferentPointersDifferentHashes(t *testing.T) {
	a := leafFor(t, 1, "pointer-a")
	b := leafFor(t, 1, "pointer-b")

	if LeafHash(a) == LeafHash(b) {
		t.Fatal("leaves differing only by pointer must hash differently")
	}
}

func TestLeafHash_Deterministic(t *testing.T) {
	leaf := leafFor(t, 4, "same")
	if LeafHash(leaf) != LeafHash(leaf) {
		t.Fatal("hashing the same leaf twice must produce the same hash")
	}
}
