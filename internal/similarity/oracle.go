// Package similarity implements the Hamming-distance duplicate oracle over a
// registry of fingerprints: a reference linear scan, and an optional
// accelerator that must agree with it.
package similarity

import (
	"math/bits"

	"github.com/protrace/registry-engine/pkg/models"
)

// DefaultThresholdBits is the default maximum Hamming distance at which two
// fingerprints are considered near-duplicates.
const DefaultThresholdBits = 26

// HammingDistance returns the number of differing bits between two
// fingerprints (0-256).
func HammingDistance(a, b models.DNA) int {
	dist := 0
	for i := range a {
		dist += bits.OnesCount8(a[i] ^ b[i])
	}
	return dist
}

// Similarity converts a Hamming distance into a [0,1] similarity score,
// where 1.0 is an exact match.
func Similarity(distance int) float64 {
	return 1.0 - float64(distance)/float64(models.DNASize*8)
}

// Candidate is a fingerprint plus its originating leaf index, the unit the
// oracle scans over.
type Candidate struct {
	LeafIndex int
	DNA       models.DNA
	Pointer   string
}

// BestMatch performs a full linear scan over candidates and returns the one
// closest (by Hamming distance) to query. It is the reference oracle: every
// accelerator's output must agree with what this function would have found.
// ok is false only when candidates is empty.
func BestMatch(query models.DNA, candidates []Candidate) (models.Match, bool) {
	if len(candidates) == 0 {
		return models.Match{}, false
	}
	best := candidates[0]
	bestDist := HammingDistance(query, best.DNA)
	for _, c := range candidates[1:] {
		d := HammingDistance(query, c.DNA)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return models.Match{
		LeafIndex: best.LeafIndex,
		Pointer:   best.Pointer,
		Distance:  bestDist,
		Similar:   Similarity(bestDist),
	}, true
}

// IsDuplicate reports whether a match's distance falls at or under
// thresholdBits.
func IsDuplicate(match models.Match, thresholdBits int) bool {
	return match.Distance <= thresholdBits
}

// FindDuplicate scans candidates in registration order and returns the
// first one within thresholdBits of query. This is the reference duplicate
// decision: first-to-cross-threshold wins, not the closest match overall —
// so it can report a different leaf than BestMatch would when more than one
// candidate falls within the threshold. ok is false when no candidate is
// within range (including an empty candidate set).
func FindDuplicate(query models.DNA, candidates []Candidate, thresholdBits int) (models.Match, bool) {
	for _, c := range candidates {
		d := HammingDistance(query, c.DNA)
		if d <= thresholdBits {
			return models.Match{
				LeafIndex: c.LeafIndex,
				Pointer:   c.Pointer,
				Distance:  d,
				Similar:   Similarity(d),
			}, true
		}
	}
	return models.Match{}, false
}
