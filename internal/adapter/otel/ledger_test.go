package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/gitdigital/loanflow/internal/adapter/otel"
	"github.com/gitdigital/loanflow/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock ledger ---

type mockLedger struct {
	loans         map[string]domain.Loan
	logs          map[string][]domain.LogEntry
	disbursements map[string]domain.Disbursement
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		loans:         make(map[string]domain.Loan),
		logs:          make(map[string][]domain.LogEntry),
		disbursements: make(map[string]domain.Disbursement),
	}
}

func (m *mockLedger) CreateLoan(_ context.Context, loan domain.Loan) error {
	m.loans[loan.ID] = loan
	return nil
}

func (m *mockLedger) GetLoan(_ context.Context, id string) (domain.Loan, error) {
	loan, ok := m.loans[id]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	return loan, nil
}

func (m *mockLedger) UpdateState(_ context.Context, loanID, newState string) error {
	loan, ok := m.loans[loanID]
	if !ok {
		return domain.ErrLoanNotFound
	}
	loan.State = newState
	m.loans[loanID] = loan
	return nil
}

func (m *mockLedger) AppendLog(_ context.Context, loanID string, entry domain.LogEntry) error {
	entry.Seq = int64(len(m.logs[loanID]) + 1)
	m.logs[loanID] = append(m.logs[loanID], entry)
	return nil
}

func (m *mockLedger) AuditLog(_ context.Context, loanID string) ([]domain.LogEntry, error) {
	return m.logs[loanID], nil
}

func (m *mockLedger) CreateDisbursement(_ context.Context, d domain.Disbursement) error {
	m.disbursements[d.LoanID+"/"+d.ID] = d
	return nil
}

func (m *mockLedger) GetDisbursement(_ context.Context, loanID, disbursementID string) (domain.Disbursement, error) {
	d, ok := m.disbursements[loanID+"/"+disbursementID]
	if !ok {
		return domain.Disbursement{}, domain.ErrDisbursementNotFound
	}
	return d, nil
}

func (m *mockLedger) FindDisbursementByKind(_ context.Context, loanID, kind string) (domain.Disbursement, error) {
	for _, d := range m.disbursements {
		if d.LoanID == loanID && d.Kind == kind {
			return d, nil
		}
	}
	return domain.Disbursement{}, domain.ErrDisbursementNotFound
}

func (m *mockLedger) MarkDisbursementPaid(_ context.Context, loanID, disbursementID string) error {
	key := loanID + "/" + disbursementID
	d, ok := m.disbursements[key]
	if !ok {
		return domain.ErrDisbursementNotFound
	}
	d.Status = domain.DisbursementPaid
	m.disbursements[key] = d
	return nil
}

// --- Tests ---

func TestTracingLedger_CreateLoan_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockLedger()
	ledger := adapter.NewTracingLedger(inner)

	loan := domain.NewLoan("L1", "founder-1", "PENDING_KYC")
	if err := ledger.CreateLoan(context.Background(), loan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "Ledger.CreateLoan" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "Ledger.CreateLoan")
	}

	assertAttribute(t, spans[0], "loan.id", "L1")
	assertAttribute(t, spans[0], "loan.state", "PENDING_KYC")
}

func TestTracingLedger_GetLoan_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockLedger()
	ledger := adapter.NewTracingLedger(inner)

	_, err := ledger.GetLoan(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrLoanNotFound) {
		t.Fatalf("expected ErrLoanNotFound, got %v", err)
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

func TestTracingLedger_UpdateState_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockLedger()
	ledger := adapter.NewTracingLedger(inner)

	inner.loans["L1"] = domain.NewLoan("L1", "founder-1", "PENDING_KYC")

	if err := ledger.UpdateState(context.Background(), "L1", "FUNDED"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "Ledger.UpdateState" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "Ledger.UpdateState")
	}

	assertAttribute(t, spans[0], "loan.state", "FUNDED")
}

func TestTracingLedger_AuditLog_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockLedger()
	ledger := adapter.NewTracingLedger(inner)

	for i := 0; i < 2; i++ {
		entry := domain.LogEntry{
			Timestamp: time.Now().UTC(),
			Actor:     domain.ActorSystem,
			Event:     domain.EntryStateTransition,
		}
		if err := inner.AppendLog(context.Background(), "L1", entry); err != nil {
			t.Fatalf("seeding log: %v", err)
		}
	}

	entries, err := ledger.AuditLog(context.Background(), "L1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	assertAttribute(t, spans[0], "result.count", "2")
}

func TestTracingLedger_CreateDisbursement_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockLedger()
	ledger := adapter.NewTracingLedger(inner)

	d := domain.Disbursement{ID: "d-1", LoanID: "L1", Kind: domain.KindFilingFee, Status: domain.DisbursementCreated}
	if err := ledger.CreateDisbursement(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "Ledger.CreateDisbursement" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "Ledger.CreateDisbursement")
	}

	assertAttribute(t, spans[0], "disbursement.kind", domain.KindFilingFee)
}

func TestTracingLedger_MarkDisbursementPaid_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockLedger()
	ledger := adapter.NewTracingLedger(inner)

	err := ledger.MarkDisbursementPaid(context.Background(), "L1", "nonexistent")
	if !errors.Is(err, domain.ErrDisbursementNotFound) {
		t.Fatalf("expected ErrDisbursementNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
