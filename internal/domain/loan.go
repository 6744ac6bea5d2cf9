package domain

import "time"

// Loan is the core domain entity: a single lending case whose lifecycle is
// driven through the states of the active process definition.
type Loan struct {
	ID        string
	FounderID string
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLoan creates a loan in the given initial state. The initial state comes
// from the active process definition, not from business logic here.
func NewLoan(id, founderID, initialState string) Loan {
	now := time.Now().UTC()
	return Loan{
		ID:        id,
		FounderID: founderID,
		State:     initialState,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WorkflowEvent is an immutable fact handed to the engine. It is consumed
// once; only its audit projection is ever persisted.
type WorkflowEvent struct {
	Type       string
	LoanID     string
	FounderID  string
	OccurredAt time.Time
	Payload    map[string]any
}

// Audit event tags. Downstream compliance tooling matches on these exact
// values, so they are fixed.
const (
	EntryIgnoredEvent        = "IGNORED_EVENT"
	EntryStateTransition     = "STATE_TRANSITION"
	EntryDisbursementCreated = "DISBURSEMENT_CREATED"
	EntryUnknownAction       = "UNKNOWN_ACTION"
)

// ActorSystem is the actor recorded for entries written by the engine itself.
const ActorSystem = "system"

// LogEntry is one record in a loan's append-only audit log. Seq is assigned
// by the ledger and is the authoritative order; Timestamp is caller-supplied
// display data and must not be used for ordering.
type LogEntry struct {
	Seq       int64
	Timestamp time.Time
	Actor     string
	Event     string
	Details   string
}

// Disbursement kinds created by workflow actions.
const (
	KindFilingFee      = "FILING_FEE"
	KindRemainingFunds = "REMAINING_FUNDS"
)

// DisbursementStatus tracks settlement of a disbursement record.
type DisbursementStatus string

const (
	DisbursementCreated DisbursementStatus = "created"
	DisbursementPaid    DisbursementStatus = "paid"
)

// Disbursement is a payment obligation tied to a loan. At most one exists
// per (loan, kind); creation is idempotent. Marking it paid is done by an
// external settlement collaborator, not by the engine.
type Disbursement struct {
	ID        string
	LoanID    string
	Kind      string
	Status    DisbursementStatus
	CreatedAt time.Time
	PaidAt    *time.Time
}
