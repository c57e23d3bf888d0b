package similarity

import (
	"testing"

	"github.com/protrace/registry-engine/pkg/models"
)

func zeroDNA() models.DNA {
	return models.DNA{}
}

func flippedDNA(bits int) models.DNA {
	var d models.DNA
	for i := 0; i < bits; i++ {
		d[i/8] |= 1 << uint(7-i%8)
	}
	return d
}

func TestHammingDistance_Symmetric(t *testing.T) {
	a := zeroDNA()
	b := flippedDNA(10)

	if HammingDistance(a, b) != HammingDistance(b, a) {
		t.Fatal("hamming distance must be symmetric")
	}
	if HammingDistance(a, b) != 10 {
		t.Fatalf("expected distance 10, got %d", HammingDistance(a, b))
	}
}

func TestHammingDistance_IdenticalIsZero(t *testing.T) {
	a := flippedDNA(37)
	if HammingDistance(a, a) != 0 {
		t.Fatal("identical fingerprints must have zero distance")
	}
}

func TestBestMatch_EmptyCandidates(t *testing.T) {
	_, ok := BestMatch(zeroDNA(), nil)
	if ok {
		t.Fatal("expected ok=false for an empty candidate set")
	}
}

func TestBestMatch_PicksClosest(t *testing.T) {
	query := zeroDNA()
	candidates := []Candidate{
		{LeafIndex: 0, DNA: flippedDNA(50), Pointer: "far"},
		{LeafIndex: 1, DNA: flippedDNA(5), Pointer: "near"},
		{LeafIndex: 2, DNA: flippedDNA(20), Pointer: "mid"},
	}

	match, ok := BestMatch(query, candidates)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Pointer != "near" || match.Distance != 5 {
		t.Fatalf("expected nearest candidate 'near' at distance 5, got %+v", match)
	}
}

func TestIsDuplicate_ThresholdBoundary(t *testing.T) {
	exactBoundary := models.Match{Distance: DefaultThresholdBits}
	oneOver := models.Match{Distance: DefaultThresholdBits + 1}

	if !IsDuplicate(exactBoundary, DefaultThresholdBits) {
		t.Fatal("a match exactly at the threshold must count as a duplicate")
	}
	if IsDuplicate(oneOver, DefaultThresholdBits) {
		t.Fatal("a match one bit over the threshold must not count as a duplicate")
	}
}

func TestFindDuplicate_ReturnsFirstCrossingNotClosest(t *testing.T) {
	query := zeroDNA()
	candidates := []Candidate{
		{LeafIndex: 0, DNA: flippedDNA(20), Pointer: "first-within-threshold"},
		{LeafIndex: 1, DNA: flippedDNA(5), Pointer: "closer-but-later"},
	}

	match, ok := FindDuplicate(query, candidates, DefaultThresholdBits)
	if !ok {
		t.Fatal("expected a duplicate match")
	}
	if match.Pointer != "first-within-threshold" || match.Distance != 20 {
		t.Fatalf("expected the first candidate crossing the threshold, got %+v", match)
	}
}

func TestFindDuplicate_NoneWithinThreshold(t *testing.T) {
	query := zeroDNA()
	candidates := []Candidate{{LeafIndex: 0, DNA: flippedDNA(100), Pointer: "far"}}

	if _, ok := FindDuplicate(query, candidates, DefaultThresholdBits); ok {
		t.Fatal("expected no duplicate when every candidate is past the threshold")
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	if Similarity(0) != 1.0 {
		t.Fatalf("expected similarity 1.0 at distance 0, got %f", Similarity(0))
	}
	if Similarity(models.DNASize * 8) != 0.0 {
		t.Fatalf("expected similarity 0.0 at maximum distance, got %f", Similarity(models.DNASize*8))
	}
}
