package domain

import "context"

// Ledger is the durable system of record for loans, their append-only audit
// log, and disbursement records. The engine never caches loan state across
// calls; every operation goes through here.
type Ledger interface {
	CreateLoan(ctx context.Context, loan Loan) error
	GetLoan(ctx context.Context, id string) (Loan, error)
	UpdateState(ctx context.Context, loanID, newState string) error

	AppendLog(ctx context.Context, loanID string, entry LogEntry) error
	AuditLog(ctx context.Context, loanID string) ([]LogEntry, error)

	// CreateDisbursement inserts a new record. It returns
	// ErrDisbursementExists when a record for the same (loan, kind) is
	// already present.
	CreateDisbursement(ctx context.Context, d Disbursement) error
	GetDisbursement(ctx context.Context, loanID, disbursementID string) (Disbursement, error)
	FindDisbursementByKind(ctx context.Context, loanID, kind string) (Disbursement, error)
	MarkDisbursementPaid(ctx context.Context, loanID, disbursementID string) error
}

// DisbursementCreator creates disbursement records idempotently per
// (loan, kind). The created flag is false when an existing record was
// returned instead of a new one being made.
type DisbursementCreator interface {
	CreateDisbursement(ctx context.Context, loanID, kind string) (rec Disbursement, created bool, err error)
}

// TransitionResolver resolves (current state, event type) against the active
// process definition. It returns a NoTransitionError when the state has no
// transition for the event, and an InvalidStateError when the state itself
// is not part of the definition.
type TransitionResolver interface {
	Resolve(ctx context.Context, current, eventType string) (Transition, error)
}

// EventPublisher emits committed transitions for async consumers
// (notifications, downstream systems). Publishing happens after the state
// commit; failures must not unwind the transition.
type EventPublisher interface {
	Publish(ctx context.Context, event WorkflowEvent, from, to string) error
}
