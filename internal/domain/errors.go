package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrLoanNotFound         = errors.New("loan not found")
	ErrDisbursementNotFound = errors.New("disbursement not found")

	// ErrDisbursementExists is the ledger-level signal that a disbursement
	// for the same (loan, kind) was inserted concurrently. The orchestrator
	// treats it as success and returns the existing record.
	ErrDisbursementExists = errors.New("disbursement already exists")
)

// InvalidStateError is returned when a loan's recorded state is absent from
// the active process definition. This is a configuration integrity fault
// (ledger/definition drift), not a user error, and is never repaired
// automatically.
type InvalidStateError struct {
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("state %q is not part of the active process definition", e.State)
}

// NoTransitionError reports that the current state has no transition for an
// event type. It is not a failure: the engine turns it into an ignored-event
// audit entry and returns successfully.
type NoTransitionError struct {
	State string
	Event string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition from state %q for event %q", e.State, e.Event)
}
