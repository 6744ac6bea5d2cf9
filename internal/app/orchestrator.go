package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gitdigital/loanflow/internal/domain"
)

// Compile-time check: Orchestrator implements domain.DisbursementCreator.
var _ domain.DisbursementCreator = (*Orchestrator)(nil)

// Orchestrator brokers disbursement records against the ledger, enforcing
// one record per (loan, kind). It creates payment obligations only; moving
// funds and settling them is the payment collaborator's job.
type Orchestrator struct {
	ledger domain.Ledger
}

// NewOrchestrator creates a disbursement orchestrator backed by the ledger.
func NewOrchestrator(ledger domain.Ledger) *Orchestrator {
	return &Orchestrator{ledger: ledger}
}

// CreateDisbursement returns the disbursement record for (loanID, kind),
// creating it if absent. The engine may be retried after a crash between a
// disbursement commit and the state commit, so a second call must return
// the existing record rather than erroring the transition.
func (o *Orchestrator) CreateDisbursement(ctx context.Context, loanID, kind string) (domain.Disbursement, bool, error) {
	if existing, err := o.ledger.FindDisbursementByKind(ctx, loanID, kind); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrDisbursementNotFound) {
		return domain.Disbursement{}, false, fmt.Errorf("looking up %s disbursement for loan %s: %w", kind, loanID, err)
	}

	rec := domain.Disbursement{
		ID:     uuid.NewString(),
		LoanID: loanID,
		Kind:   kind,
		Status: domain.DisbursementCreated,
	}

	err := o.ledger.CreateDisbursement(ctx, rec)
	if errors.Is(err, domain.ErrDisbursementExists) {
		// Lost a race with a concurrent creator; theirs is the record.
		existing, ferr := o.ledger.FindDisbursementByKind(ctx, loanID, kind)
		if ferr != nil {
			return domain.Disbursement{}, false, fmt.Errorf("refetching %s disbursement for loan %s: %w", kind, loanID, ferr)
		}
		return existing, false, nil
	}
	if err != nil {
		return domain.Disbursement{}, false, fmt.Errorf("creating %s disbursement for loan %s: %w", kind, loanID, err)
	}

	created, err := o.ledger.FindDisbursementByKind(ctx, loanID, kind)
	if err != nil {
		return domain.Disbursement{}, false, fmt.Errorf("reading back %s disbursement for loan %s: %w", kind, loanID, err)
	}
	return created, true, nil
}

// Get returns a disbursement record by its (loan, disbursement) key.
func (o *Orchestrator) Get(ctx context.Context, loanID, disbursementID string) (domain.Disbursement, error) {
	return o.ledger.GetDisbursement(ctx, loanID, disbursementID)
}

// MarkPaid records settlement of a disbursement, reported by the external
// payment collaborator.
func (o *Orchestrator) MarkPaid(ctx context.Context, loanID, disbursementID string) error {
	return o.ledger.MarkDisbursementPaid(ctx, loanID, disbursementID)
}
