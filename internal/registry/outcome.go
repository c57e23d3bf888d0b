package registry

import "github.com/protrace/registry-engine/pkg/models"

// Result is the outcome of a single registration attempt: exactly one of
// Accepted or Rejected is set.
type Result struct {
	Accepted *models.Accepted
	Rejected *models.Rejected
}

// PersistFunc persists a newly accepted leaf. A non-nil error aborts the
// registration: the leaf is rolled back out of the commitment tree before
// Register/BatchRegister returns the error to its caller.
type PersistFunc func(models.Leaf) error

// Hook receives every registration outcome (accepted or rejected) after it
// has been fully committed, mirroring the reference engine's pattern of
// broadcasting alerts over its websocket hub once a result is final.
type Hook func(Result)
