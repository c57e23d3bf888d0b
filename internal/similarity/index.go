package similarity

import (
	"github.com/protrace/registry-engine/pkg/models"
)

// BucketIndex accelerates duplicate detection by LSH-style banding: the
// 256-bit fingerprint is split into enough equal bands that, for any two
// fingerprints within thresholdBits of each other, at least one band must
// match exactly (pigeonhole: at most thresholdBits bits differ, so with
// thresholdBits+1 bands at least one band is untouched). Candidates are
// grouped per band key in a map, generalizing the grouping-by-key structure
// the reference engine uses for cluster membership, here keyed by fingerprint
// band rather than by address.
//
// BucketIndex only narrows the candidate set for the duplicate/not-duplicate
// decision. It is never the source of truth for the reported best match:
// that is always computed by a full BestMatch scan, so a caller comparing
// BucketIndex against the reference oracle will see identical outcomes.
type BucketIndex struct {
	thresholdBits int
	bands         int
	bandBits      int
	buckets       []map[uint64][]int
	candidates    []Candidate
}

// NewBucketIndex builds an empty accelerator tuned for thresholdBits.
func NewBucketIndex(thresholdBits int) *BucketIndex {
	bands := thresholdBits + 1
	if bands < 1 {
		bands = 1
	}
	if bands > models.DNASize*8 {
		bands = models.DNASize * 8
	}
	bandBits := (models.DNASize * 8) / bands
	if bandBits < 1 {
		bandBits = 1
	}

	buckets := make([]map[uint64][]int, bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]int)
	}

	return &BucketIndex{
		thresholdBits: thresholdBits,
		bands:         bands,
		bandBits:      bandBits,
		buckets:       buckets,
	}
}

// Add registers a candidate's fingerprint into every band bucket.
func (b *BucketIndex) Add(c Candidate) {
	pos := len(b.candidates)
	b.candidates = append(b.candidates, c)
	for band := 0; band < b.bands; band++ {
		key := bandKey(c.DNA, band, b.bandBits)
		b.buckets[band][key] = append(b.buckets[band][key], pos)
	}
}

// CandidateSet returns every registered candidate that shares at least one
// band with query — a superset guaranteed to contain every candidate within
// thresholdBits of query.
func (b *BucketIndex) CandidateSet(query models.DNA) []Candidate {
	seen := make(map[int]bool)
	var out []Candidate
	for band := 0; band < b.bands; band++ {
		key := bandKey(query, band, b.bandBits)
		for _, pos := range b.buckets[band][key] {
			if !seen[pos] {
				seen[pos] = true
				out = append(out, b.candidates[pos])
			}
		}
	}
	return out
}

// HasDuplicateWithin reports whether any indexed candidate is within
// thresholdBits of query, scanning only the narrowed band candidate set.
// This always agrees with scanning the full candidate list with IsDuplicate,
// by the pigeonhole argument in the type's doc comment.
func (b *BucketIndex) HasDuplicateWithin(query models.DNA) (models.Match, bool) {
	narrowed := b.CandidateSet(query)
	if len(narrowed) == 0 {
		return models.Match{}, false
	}
	match, ok := BestMatch(query, narrowed)
	if !ok || !IsDuplicate(match, b.thresholdBits) {
		return models.Match{}, false
	}
	return match, true
}

// bandKey extracts band bandIndex's bandBits-wide bit window from dna's 256
// bits and packs it into a uint64 key.
func bandKey(dna models.DNA, bandIndex, bandBits int) uint64 {
	startBit := bandIndex * bandBits
	var key uint64
	for i := 0; i < bandBits; i++ {
		bitPos := startBit + i
		byteIdx := bitPos / 8
		if byteIdx >= len(dna) {
			break
		}
		bitOffset := 7 - (bitPos % 8)
		bit := (dna[byteIdx] >> uint(bitOffset)) & 1
		key = (key << 1) | uint64(bit)
	}
	return key
}
