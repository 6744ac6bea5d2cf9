package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gitdigital/loanflow/internal/domain"
)

// Engine interprets the active process definition against ledger-held loan
// state. It is safe for concurrent use: events for distinct loans run in
// parallel, events for the same loan are serialized by a keyed lock held
// from the state read through the commit of the new state.
type Engine struct {
	ledger        domain.Ledger
	disbursements domain.DisbursementCreator
	resolver      domain.TransitionResolver
	publisher     domain.EventPublisher
	initial       string
	locks         *keyedMutex
	log           *slog.Logger
}

// NewEngine creates an engine with the given adapters. initialState is where
// newly created loans start; it comes from the loaded definition.
func NewEngine(ledger domain.Ledger, disbursements domain.DisbursementCreator, resolver domain.TransitionResolver, publisher domain.EventPublisher, initialState string) *Engine {
	return &Engine{
		ledger:        ledger,
		disbursements: disbursements,
		resolver:      resolver,
		publisher:     publisher,
		initial:       initialState,
		locks:         newKeyedMutex(),
		log:           slog.Default(),
	}
}

// CreateLoan opens a new lending case in the definition's initial state.
func (e *Engine) CreateLoan(ctx context.Context, founderID string) (domain.Loan, error) {
	loan := domain.NewLoan(uuid.NewString(), founderID, e.initial)

	if err := e.ledger.CreateLoan(ctx, loan); err != nil {
		return domain.Loan{}, fmt.Errorf("creating loan: %w", err)
	}

	e.log.InfoContext(ctx, "loan created", "loan_id", loan.ID, "founder_id", founderID, "state", loan.State)
	return loan, nil
}

// GetLoan returns a loan by its identifier.
func (e *Engine) GetLoan(ctx context.Context, id string) (domain.Loan, error) {
	return e.ledger.GetLoan(ctx, id)
}

// AuditLog returns a loan's audit entries in ledger order.
func (e *Engine) AuditLog(ctx context.Context, loanID string) ([]domain.LogEntry, error) {
	if _, err := e.ledger.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return e.ledger.AuditLog(ctx, loanID)
}

// HandleEvent applies a workflow event to a loan.
//
// An event with no matching transition is a normal outcome: it is recorded
// as an ignored-event audit entry and HandleEvent returns nil. True failures
// (unknown loan, state missing from the definition, ledger or orchestrator
// errors) abort before the state commit and propagate to the caller.
//
// The state commit is the point of no return: once UpdateState succeeds the
// trailing audit entry and the async publish run under a non-cancellable
// context, so a cancelled caller cannot leave a committed transition
// unlogged.
func (e *Engine) HandleEvent(ctx context.Context, event domain.WorkflowEvent) error {
	unlock := e.locks.lock(event.LoanID)
	defer unlock()

	loan, err := e.ledger.GetLoan(ctx, event.LoanID)
	if err != nil {
		return err
	}

	transition, err := e.resolver.Resolve(ctx, loan.State, event.Type)
	var noTransition *domain.NoTransitionError
	switch {
	case errors.As(err, &noTransition):
		entry := domain.LogEntry{
			Timestamp: event.OccurredAt,
			Actor:     domain.ActorSystem,
			Event:     domain.EntryIgnoredEvent,
			Details:   fmt.Sprintf("no transition from state %s for event %s", loan.State, event.Type),
		}
		if err := e.ledger.AppendLog(ctx, loan.ID, entry); err != nil {
			return fmt.Errorf("logging ignored event: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("loan %s: %w", loan.ID, err)
	}

	// Actions are causally prior to the transition: each side effect is
	// durable before the next action runs and before the state commits.
	for _, action := range transition.Actions {
		if err := e.runAction(ctx, loan, event, action); err != nil {
			return err
		}
	}

	if err := e.ledger.UpdateState(ctx, loan.ID, transition.To); err != nil {
		return fmt.Errorf("committing state %s for loan %s: %w", transition.To, loan.ID, err)
	}

	// Point of no return. The transition is durable; finish the audit trail
	// even if the caller has gone away.
	logCtx := context.WithoutCancel(ctx)

	entry := domain.LogEntry{
		Timestamp: event.OccurredAt,
		Actor:     domain.ActorSystem,
		Event:     domain.EntryStateTransition,
		Details:   fmt.Sprintf("%s -> %s, triggered by event %s", loan.State, transition.To, event.Type),
	}
	if err := e.ledger.AppendLog(logCtx, loan.ID, entry); err != nil {
		return fmt.Errorf("logging state transition for loan %s: %w", loan.ID, err)
	}

	if err := e.publisher.Publish(logCtx, event, loan.State, transition.To); err != nil {
		// The transition is committed; a publish failure is an operational
		// problem, not a workflow one.
		e.log.ErrorContext(logCtx, "publishing transition", "loan_id", loan.ID, "event", event.Type, "error", err)
	}

	return nil
}
