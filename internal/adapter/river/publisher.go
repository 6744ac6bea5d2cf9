package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/gitdigital/loanflow/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// TransitionJobArgs carries a committed loan transition for async
// processing. River serializes this as JSON into its job queue table. It
// includes a snapshot of the transition, so the worker never needs to query
// the ledger.
type TransitionJobArgs struct {
	LoanID    string `json:"loan_id"`
	FounderID string `json:"founder_id"`
	Event     string `json:"event"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "loan.transitioned" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a committed transition as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.WorkflowEvent, from, to string) error {
	_, err := p.client.Insert(ctx, TransitionJobArgs{
		LoanID:    event.LoanID,
		FounderID: event.FounderID,
		Event:     event.Type,
		FromState: from,
		ToState:   to,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}
