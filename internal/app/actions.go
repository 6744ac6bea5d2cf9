package app

import (
	"context"
	"fmt"

	"github.com/gitdigital/loanflow/internal/domain"
)

// runAction dispatches one transition action. Known actions create a
// disbursement through the orchestrator and record it; an unrecognized
// trigger is logged and skipped so that a definition written for a newer
// engine never aborts an in-flight transition.
func (e *Engine) runAction(ctx context.Context, loan domain.Loan, event domain.WorkflowEvent, action domain.Action) error {
	switch domain.ParseActionKind(action.Trigger) {
	case domain.ActionFirstDisbursement:
		return e.createDisbursement(ctx, loan, event, domain.KindFilingFee, "filing fee")
	case domain.ActionSecondDisbursement:
		return e.createDisbursement(ctx, loan, event, domain.KindRemainingFunds, "remaining funds")
	default:
		entry := domain.LogEntry{
			Timestamp: event.OccurredAt,
			Actor:     domain.ActorSystem,
			Event:     domain.EntryUnknownAction,
			Details:   fmt.Sprintf("unrecognized action trigger %s", action.Trigger),
		}
		if err := e.ledger.AppendLog(ctx, loan.ID, entry); err != nil {
			return fmt.Errorf("logging unknown action %q: %w", action.Trigger, err)
		}
		return nil
	}
}

func (e *Engine) createDisbursement(ctx context.Context, loan domain.Loan, event domain.WorkflowEvent, kind, label string) error {
	_, created, err := e.disbursements.CreateDisbursement(ctx, loan.ID, kind)
	if err != nil {
		return fmt.Errorf("creating %s disbursement for loan %s: %w", label, loan.ID, err)
	}

	// On a retried event the record already exists; the original run logged
	// it, so only a fresh creation gets an audit entry.
	if !created {
		return nil
	}

	entry := domain.LogEntry{
		Timestamp: event.OccurredAt,
		Actor:     domain.ActorSystem,
		Event:     domain.EntryDisbursementCreated,
		Details:   fmt.Sprintf("created %s disbursement", label),
	}
	if err := e.ledger.AppendLog(ctx, loan.ID, entry); err != nil {
		return fmt.Errorf("logging %s disbursement: %w", label, err)
	}
	return nil
}
