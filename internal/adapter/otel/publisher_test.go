package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"

	adapter "github.com/gitdigital/loanflow/internal/adapter/otel"
	"github.com/gitdigital/loanflow/internal/domain"
)

type mockPublisher struct {
	err       error
	published int
}

func (m *mockPublisher) Publish(_ context.Context, _ domain.WorkflowEvent, _, _ string) error {
	m.published++
	return m.err
}

func testEvent() domain.WorkflowEvent {
	return domain.WorkflowEvent{
		Type:       "LOAN_ISSUED",
		LoanID:     "L1",
		FounderID:  "founder-1",
		OccurredAt: time.Now().UTC(),
	}
}

func TestTracingPublisher_Publish_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockPublisher{}
	pub := adapter.NewTracingPublisher(inner)

	if err := pub.Publish(context.Background(), testEvent(), "APPROVED", "FUNDED"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.published != 1 {
		t.Errorf("published = %d, want 1", inner.published)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "EventPublisher.Publish" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "EventPublisher.Publish")
	}

	assertAttribute(t, spans[0], "event.type", "LOAN_ISSUED")
	assertAttribute(t, spans[0], "loan.id", "L1")
	assertAttribute(t, spans[0], "transition.from", "APPROVED")
	assertAttribute(t, spans[0], "transition.to", "FUNDED")
}

func TestTracingPublisher_Publish_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockPublisher{err: errors.New("queue unavailable")}
	pub := adapter.NewTracingPublisher(inner)

	err := pub.Publish(context.Background(), testEvent(), "APPROVED", "FUNDED")
	if err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}
