// Package registry composes DNA extraction, the similarity oracle, and the
// commitment tree into the single atomic registration operation: compute,
// check for a near-duplicate, and either reject or append-and-commit.
package registry

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/protrace/registry-engine/internal/imaging"
	"github.com/protrace/registry-engine/internal/merkle"
	"github.com/protrace/registry-engine/internal/similarity"
	"github.com/protrace/registry-engine/pkg/models"
)

// Registry holds the live commitment tree and candidate set behind a single
// writer/many-reader lock, the same discipline the reference websocket hub
// uses to guard its client map.
type Registry struct {
	mu            sync.RWMutex
	tree          *merkle.Tree
	candidates    []similarity.Candidate
	thresholdBits int
	index         *similarity.BucketIndex
	persist       PersistFunc
	hooks         []Hook

	acceptedCount atomic.Int64
	rejectedCount atomic.Int64
}

// New builds an empty Registry. thresholdBits is the default maximum
// Hamming distance for duplicate detection; persist may be nil (no
// collaborator persistence); enableIndex turns on the bucket accelerator.
func New(thresholdBits int, persist PersistFunc, enableIndex bool) *Registry {
	r := &Registry{
		tree:          merkle.NewTree(),
		thresholdBits: thresholdBits,
		persist:       persist,
	}
	if enableIndex {
		r.index = similarity.NewBucketIndex(thresholdBits)
	}
	return r
}

// AddHook registers a callback invoked with every registration outcome,
// after persistence has succeeded (or was skipped).
func (r *Registry) AddHook(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// BatchItem is one entry of a BatchRegister call.
type BatchItem struct {
	Raw     []byte
	Options models.Options
}

// Register extracts raw's DNA and attempts to register it.
func (r *Registry) Register(raw []byte, opts models.Options) (Result, error) {
	dna, err := imaging.ComputeDNA(raw)
	if err != nil {
		return Result{}, fmt.Errorf("registry: extract dna: %w", err)
	}
	return r.RegisterDNA(dna, opts)
}

// BatchRegister processes items in order, within the same registry state:
// a leaf accepted by an earlier item is visible to the duplicate check of
// every later item in the batch. Processing stops at the first error (a
// decode failure or a persistence failure); results already produced are
// returned alongside it.
func (r *Registry) BatchRegister(items []BatchItem) ([]Result, error) {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		res, err := r.Register(item.Raw, item.Options)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RegisterDNA attempts to register an already-computed fingerprint. Exported
// so callers that extracted DNA separately (or tests) can skip re-decoding.
func (r *Registry) RegisterDNA(dna models.DNA, opts models.Options) (Result, error) {
	threshold := r.thresholdBits
	if opts.ThresholdBits != 0 {
		threshold = opts.ThresholdBits
	}

	r.mu.Lock()

	dupMatch, isDuplicate := similarity.FindDuplicate(dna, r.candidates, threshold)

	if r.index != nil {
		_, indexSaysDuplicate := r.index.HasDuplicateWithin(dna)
		if indexSaysDuplicate != isDuplicate {
			log.Printf("[registry] bucket index diverged from linear scan at threshold=%d, trusting linear scan", threshold)
		}
	}

	// allow_self_duplicate: re-registering an identical fingerprint under
	// its own pointer is accepted rather than rejected.
	selfDuplicate := isDuplicate && opts.AllowSelfDuplicate &&
		dupMatch.Distance == 0 && dupMatch.Pointer == opts.Pointer

	if isDuplicate && !selfDuplicate {
		r.mu.Unlock()
		r.rejectedCount.Add(1)
		result := Result{Rejected: &models.Rejected{Candidate: dna, Match: dupMatch}}
		r.runHooks(result)
		return result, nil
	}

	bestMatch, found := similarity.BestMatch(dna, r.candidates)

	timestamp := opts.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	leaf := models.Leaf{
		DNA:        dna,
		Pointer:    opts.Pointer,
		PlatformID: opts.PlatformID,
		Timestamp:  timestamp,
	}
	idx := r.tree.Append(leaf)
	leaf.Index = idx

	candidate := similarity.Candidate{LeafIndex: idx, DNA: dna, Pointer: opts.Pointer}
	r.candidates = append(r.candidates, candidate)
	if r.index != nil {
		r.index.Add(candidate)
	}

	proof, _ := r.tree.ProofFor(idx)
	root, _ := r.tree.Root() // the Append above guarantees the tree is non-empty
	r.mu.Unlock()

	if r.persist != nil {
		if err := r.persist(leaf); err != nil {
			r.mu.Lock()
			r.tree.RemoveLast()
			r.candidates = r.candidates[:len(r.candidates)-1]
			r.mu.Unlock()
			return Result{}, fmt.Errorf("registry: persist leaf: %w", err)
		}
	}

	r.acceptedCount.Add(1)
	accepted := &models.Accepted{Leaf: leaf, Proof: proof, Root: root}
	if found {
		m := bestMatch
		accepted.BestMatch = &m
	}
	result := Result{Accepted: accepted}
	r.runHooks(result)
	return result, nil
}

// ProofFor returns the membership proof for a previously accepted leaf.
func (r *Registry) ProofFor(index int) ([]models.ProofStep, error) {
	return r.tree.ProofFor(index)
}

// Root returns the current commitment root, or an error if no leaf has been
// accepted yet.
func (r *Registry) Root() ([32]byte, error) {
	return r.tree.Root()
}

// Manifest exports the full registry state for external persistence or
// audit.
func (r *Registry) Manifest() models.Manifest {
	return r.tree.ExportManifest()
}

// Stats reports the lifetime accepted/rejected counts, read without
// blocking writers.
func (r *Registry) Stats() (accepted, rejected int64) {
	return r.acceptedCount.Load(), r.rejectedCount.Load()
}

func (r *Registry) runHooks(result Result) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h(result)
	}
}
