package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// errors
	ErrNotFound                 = errors.New("booking not found")
	ErrInvalidTransition        = errors.New("booking is not awaiting review")
	ErrCancellationWindowClosed = errors.New("cancellation window has closed")
)

// Artifact identifies a record created by a partially failed operation.
type Artifact struct {
	Kind string `json:"kind"` // "seat" | "booking" | "payment" | "notification"
	ID   string `json:"id"`
}

// PartialFailureError reports a multi-write operation that failed midway.
// The store has no multi-row transactions, so writes that succeeded before
// the failure stay applied; Artifacts lists them, in creation order, so a
// support flow can reconcile the orphans instead of guessing.
type PartialFailureError struct {
	Op        string
	Artifacts []Artifact
	Err       error
}

func (e *PartialFailureError) Error() string {
	kinds := make([]string, 0, len(e.Artifacts))
	for _, a := range e.Artifacts {
		kinds = append(kinds, a.Kind)
	}
	return fmt.Sprintf("%s partially failed after creating [%s]: %v", e.Op, strings.Join(kinds, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func newPartialFailure(op string, err error, artifacts ...Artifact) error {
	return &PartialFailureError{Op: op, Artifacts: artifacts, Err: err}
}
