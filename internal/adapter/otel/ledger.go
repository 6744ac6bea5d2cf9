package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gitdigital/loanflow/internal/domain"
)

const tracerName = "github.com/gitdigital/loanflow/internal/adapter/otel"

// TracingLedger wraps a domain.Ledger with OpenTelemetry tracing. Each
// method creates a span with semantic attributes and records errors.
type TracingLedger struct {
	next   domain.Ledger
	tracer trace.Tracer
}

// Compile-time check: TracingLedger implements domain.Ledger.
var _ domain.Ledger = (*TracingLedger)(nil)

// NewTracingLedger creates a tracing decorator around the given ledger.
func NewTracingLedger(next domain.Ledger) *TracingLedger {
	return &TracingLedger{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (l *TracingLedger) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func record(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (l *TracingLedger) CreateLoan(ctx context.Context, loan domain.Loan) error {
	ctx, span := l.span(ctx, "Ledger.CreateLoan",
		attribute.String("loan.id", loan.ID),
		attribute.String("loan.state", loan.State),
	)
	defer span.End()

	err := l.next.CreateLoan(ctx, loan)
	record(span, err)
	return err
}

func (l *TracingLedger) GetLoan(ctx context.Context, id string) (domain.Loan, error) {
	ctx, span := l.span(ctx, "Ledger.GetLoan", attribute.String("loan.id", id))
	defer span.End()

	loan, err := l.next.GetLoan(ctx, id)
	record(span, err)
	return loan, err
}

func (l *TracingLedger) UpdateState(ctx context.Context, loanID, newState string) error {
	ctx, span := l.span(ctx, "Ledger.UpdateState",
		attribute.String("loan.id", loanID),
		attribute.String("loan.state", newState),
	)
	defer span.End()

	err := l.next.UpdateState(ctx, loanID, newState)
	record(span, err)
	return err
}

func (l *TracingLedger) AppendLog(ctx context.Context, loanID string, entry domain.LogEntry) error {
	ctx, span := l.span(ctx, "Ledger.AppendLog",
		attribute.String("loan.id", loanID),
		attribute.String("audit.event", entry.Event),
	)
	defer span.End()

	err := l.next.AppendLog(ctx, loanID, entry)
	record(span, err)
	return err
}

func (l *TracingLedger) AuditLog(ctx context.Context, loanID string) ([]domain.LogEntry, error) {
	ctx, span := l.span(ctx, "Ledger.AuditLog", attribute.String("loan.id", loanID))
	defer span.End()

	entries, err := l.next.AuditLog(ctx, loanID)
	record(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(entries)))
	}
	return entries, err
}

func (l *TracingLedger) CreateDisbursement(ctx context.Context, d domain.Disbursement) error {
	ctx, span := l.span(ctx, "Ledger.CreateDisbursement",
		attribute.String("loan.id", d.LoanID),
		attribute.String("disbursement.kind", d.Kind),
	)
	defer span.End()

	err := l.next.CreateDisbursement(ctx, d)
	record(span, err)
	return err
}

func (l *TracingLedger) GetDisbursement(ctx context.Context, loanID, disbursementID string) (domain.Disbursement, error) {
	ctx, span := l.span(ctx, "Ledger.GetDisbursement",
		attribute.String("loan.id", loanID),
		attribute.String("disbursement.id", disbursementID),
	)
	defer span.End()

	d, err := l.next.GetDisbursement(ctx, loanID, disbursementID)
	record(span, err)
	return d, err
}

func (l *TracingLedger) FindDisbursementByKind(ctx context.Context, loanID, kind string) (domain.Disbursement, error) {
	ctx, span := l.span(ctx, "Ledger.FindDisbursementByKind",
		attribute.String("loan.id", loanID),
		attribute.String("disbursement.kind", kind),
	)
	defer span.End()

	d, err := l.next.FindDisbursementByKind(ctx, loanID, kind)
	record(span, err)
	return d, err
}

func (l *TracingLedger) MarkDisbursementPaid(ctx context.Context, loanID, disbursementID string) error {
	ctx, span := l.span(ctx, "Ledger.MarkDisbursementPaid",
		attribute.String("loan.id", loanID),
		attribute.String("disbursement.id", disbursementID),
	)
	defer span.End()

	err := l.next.MarkDisbursementPaid(ctx, loanID, disbursementID)
	record(span, err)
	return err
}
