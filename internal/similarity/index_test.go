package similarity

import (
	"fmt"
	"testing"

	"github.com/protrace/registry-engine/internal/metrics"
	"github.com/protrace/registry-engine/pkg/models"
)

// fixtureDNA deterministically derives a fingerprint from an integer seed by
// flipping a seed-dependent, spread-out set of bits off the zero fingerprint.
func fixtureDNA(seed int) models.DNA {
	var d models.DNA
	for i := 0; i < 256; i++ {
		// A simple odd-stride walk so each seed lights up a distinct,
		// scattered bit pattern instead of a contiguous prefix.
		if (i*(seed*2+7))%256 < seed%37+3 {
			d[i/8] |= 1 << uint(7-i%8)
		}
	}
	return d
}

// TestBucketIndex_AgreesWithLinearScan builds a registry of fixtures and
// confirms the bucket accelerator's duplicate/unique partition of a query
// set exactly matches the reference linear scan, using ARI as the agreement
// check: perfect agreement must score 1.0.
func TestBucketIndex_AgreesWithLinearScan(t *testing.T) {
	const threshold = 26
	const n = 60

	candidates := make([]Candidate, n)
	for i := 0; i < n; i++ {
		candidates[i] = Candidate{LeafIndex: i, DNA: fixtureDNA(i), Pointer: fmt.Sprintf("item-%d", i)}
	}

	idx := NewBucketIndex(threshold)
	for _, c := range candidates {
		idx.Add(c)
	}

	linearLabels := make([]int, n)
	indexLabels := make([]int, n)
	for i, c := range candidates {
		others := make([]Candidate, 0, n-1)
		for _, other := range candidates {
			if other.LeafIndex != c.LeafIndex {
				others = append(others, other)
			}
		}

		linearMatch, found := BestMatch(c.DNA, others)
		linearIsDup := found && IsDuplicate(linearMatch, threshold)

		probe := NewBucketIndex(threshold)
		for _, other := range others {
			probe.Add(other)
		}
		_, indexIsDup := probe.HasDuplicateWithin(c.DNA)

		linearLabels[i] = boolLabel(linearIsDup)
		indexLabels[i] = boolLabel(indexIsDup)
	}

	ari := metrics.AdjustedRandIndex(indexLabels, linearLabels)
	if ari < 0.999 {
		t.Fatalf("bucket index partition diverged from linear scan: ARI=%f\nindex=%v\nlinear=%v", ari, indexLabels, linearLabels)
	}
}

func boolLabel(b bool) int {
	if b {
		return 1
	}
	return 0
}
