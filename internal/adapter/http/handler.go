package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gitdigital/loanflow/internal/app"
	"github.com/gitdigital/loanflow/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05.000Z"

// LoanResponse is the API representation of a loan.
type LoanResponse struct {
	ID        string `json:"id" doc:"Unique identifier"`
	FounderID string `json:"founder_id" doc:"Founder who owns the loan"`
	State     string `json:"state" doc:"Current workflow state"`
	CreatedAt string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toLoanResponse(l domain.Loan) LoanResponse {
	return LoanResponse{
		ID:        l.ID,
		FounderID: l.FounderID,
		State:     l.State,
		CreatedAt: l.CreatedAt.Format(timeFormat),
		UpdatedAt: l.UpdatedAt.Format(timeFormat),
	}
}

// LogEntryResponse is one audit log entry, in ledger order.
type LogEntryResponse struct {
	Seq       int64  `json:"seq" doc:"Ledger-assigned sequence (authoritative order)"`
	Timestamp string `json:"timestamp" doc:"Caller-supplied occurrence time (display only)"`
	Actor     string `json:"actor" doc:"Who caused the entry"`
	Event     string `json:"event" doc:"Audit event tag"`
	Details   string `json:"details" doc:"Free-text detail"`
}

// DisbursementResponse is the API representation of a disbursement record.
type DisbursementResponse struct {
	ID        string `json:"id" doc:"Disbursement identifier"`
	LoanID    string `json:"loan_id" doc:"Owning loan"`
	Kind      string `json:"kind" doc:"Disbursement kind"`
	Status    string `json:"status" doc:"created or paid"`
	CreatedAt string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	PaidAt    string `json:"paid_at,omitempty" doc:"Settlement timestamp, if paid"`
}

func toDisbursementResponse(d domain.Disbursement) DisbursementResponse {
	resp := DisbursementResponse{
		ID:        d.ID,
		LoanID:    d.LoanID,
		Kind:      d.Kind,
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt.Format(timeFormat),
	}
	if d.PaidAt != nil {
		resp.PaidAt = d.PaidAt.Format(timeFormat)
	}
	return resp
}

// EventResponse reports the outcome of an accepted workflow event.
type EventResponse struct {
	Event  string `json:"event" doc:"Event type that was processed"`
	LoanID string `json:"loan_id" doc:"Loan the event applied to"`
	State  string `json:"state" doc:"Loan state after processing"`
}

// --- Inputs/outputs ---

type CreateLoanInput struct {
	Body struct {
		FounderID string `json:"founder_id" minLength:"1" maxLength:"100" doc:"Founder who owns the loan"`
	}
}

type CreateLoanOutput struct {
	Body LoanResponse
}

type GetLoanInput struct {
	ID string `path:"id" doc:"Loan ID"`
}

type GetLoanOutput struct {
	Body LoanResponse
}

type GetLoanLogInput struct {
	ID string `path:"id" doc:"Loan ID"`
}

type GetLoanLogOutput struct {
	Body []LogEntryResponse
}

type IssueLoanInput struct {
	Body struct {
		LoanID    string `json:"loan_id" minLength:"1" doc:"Loan to issue"`
		FounderID string `json:"founder_id" minLength:"1" doc:"Founder who owns the loan"`
	}
}

type SubmitKycInput struct {
	Body struct {
		LoanID    string `json:"loan_id" minLength:"1" doc:"Loan the KYC result applies to"`
		FounderID string `json:"founder_id" minLength:"1" doc:"Founder whose identity was verified"`
	}
}

type SubmitMilestoneInput struct {
	Body struct {
		LoanID      string `json:"loan_id" minLength:"1" doc:"Loan the milestone belongs to"`
		FounderID   string `json:"founder_id" minLength:"1" doc:"Founder submitting the milestone"`
		MilestoneID string `json:"milestone_id,omitempty" doc:"Optional milestone identifier"`
	}
}

// ResolveGovernanceInput requires action_type explicitly: governance
// resolutions carry their event type, and a missing one is a request error,
// never a defaulted event.
type ResolveGovernanceInput struct {
	Body struct {
		LoanID     string `json:"loan_id" minLength:"1" doc:"Loan the resolution applies to"`
		ActionType string `json:"action_type" minLength:"1" doc:"Workflow event type decided by governance"`
	}
}

type EventOutput struct {
	Body EventResponse
}

type GetDisbursementInput struct {
	LoanID string `path:"loan_id" doc:"Loan ID"`
	ID     string `path:"id" doc:"Disbursement ID"`
}

type GetDisbursementOutput struct {
	Body DisbursementResponse
}

type MarkPaidInput struct {
	Body struct {
		LoanID         string `json:"loan_id" minLength:"1" doc:"Loan ID"`
		DisbursementID string `json:"disbursement_id" minLength:"1" doc:"Disbursement to settle"`
	}
}

type MarkPaidOutput struct {
	Body DisbursementResponse
}

// Register adds all loanflow API routes to the Huma API.
func Register(api huma.API, engine *app.Engine, orchestrator *app.Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "create-loan",
		Method:      http.MethodPost,
		Path:        "/api/v1/loans",
		Summary:     "Open a new loan in the workflow's initial state",
		Tags:        []string{"Loans"},
	}, func(ctx context.Context, input *CreateLoanInput) (*CreateLoanOutput, error) {
		loan, err := engine.CreateLoan(ctx, input.Body.FounderID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateLoanOutput{Body: toLoanResponse(loan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-loan",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/{id}",
		Summary:     "Get a loan by ID",
		Tags:        []string{"Loans"},
	}, func(ctx context.Context, input *GetLoanInput) (*GetLoanOutput, error) {
		loan, err := engine.GetLoan(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetLoanOutput{Body: toLoanResponse(loan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-loan-log",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/{id}/log",
		Summary:     "Read a loan's audit log in ledger order",
		Tags:        []string{"Loans"},
	}, func(ctx context.Context, input *GetLoanLogInput) (*GetLoanLogOutput, error) {
		entries, err := engine.AuditLog(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]LogEntryResponse, len(entries))
		for i, e := range entries {
			resp[i] = LogEntryResponse{
				Seq:       e.Seq,
				Timestamp: e.Timestamp.Format(timeFormat),
				Actor:     e.Actor,
				Event:     e.Event,
				Details:   e.Details,
			}
		}
		return &GetLoanLogOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "issue-loan",
		Method:      http.MethodPost,
		Path:        "/api/v1/loans/issue",
		Summary:     "Record loan issuance",
		Tags:        []string{"Loans"},
	}, func(ctx context.Context, input *IssueLoanInput) (*EventOutput, error) {
		return handleEvent(ctx, engine, domain.WorkflowEvent{
			Type:       "LOAN_ISSUED",
			LoanID:     input.Body.LoanID,
			FounderID:  input.Body.FounderID,
			OccurredAt: time.Now().UTC(),
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-kyc",
		Method:      http.MethodPost,
		Path:        "/api/v1/kyc/submit",
		Summary:     "Record an approved KYC verification",
		Tags:        []string{"KYC"},
	}, func(ctx context.Context, input *SubmitKycInput) (*EventOutput, error) {
		return handleEvent(ctx, engine, domain.WorkflowEvent{
			Type:       "KYC_APPROVED",
			LoanID:     input.Body.LoanID,
			FounderID:  input.Body.FounderID,
			OccurredAt: time.Now().UTC(),
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-milestone",
		Method:      http.MethodPost,
		Path:        "/api/v1/milestones/submit",
		Summary:     "Submit a milestone for review",
		Tags:        []string{"Milestones"},
	}, func(ctx context.Context, input *SubmitMilestoneInput) (*EventOutput, error) {
		event := domain.WorkflowEvent{
			Type:       "MILESTONE_SUBMITTED",
			LoanID:     input.Body.LoanID,
			FounderID:  input.Body.FounderID,
			OccurredAt: time.Now().UTC(),
		}
		if input.Body.MilestoneID != "" {
			event.Payload = map[string]any{"milestone_id": input.Body.MilestoneID}
		}
		return handleEvent(ctx, engine, event)
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-governance",
		Method:      http.MethodPost,
		Path:        "/api/v1/governance/resolve",
		Summary:     "Apply a governance resolution to a loan",
		Tags:        []string{"Governance"},
	}, func(ctx context.Context, input *ResolveGovernanceInput) (*EventOutput, error) {
		return handleEvent(ctx, engine, domain.WorkflowEvent{
			Type:       input.Body.ActionType,
			LoanID:     input.Body.LoanID,
			FounderID:  "governance",
			OccurredAt: time.Now().UTC(),
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-disbursement",
		Method:      http.MethodGet,
		Path:        "/api/v1/disbursements/{loan_id}/{id}",
		Summary:     "Get a disbursement record",
		Tags:        []string{"Disbursements"},
	}, func(ctx context.Context, input *GetDisbursementInput) (*GetDisbursementOutput, error) {
		d, err := orchestrator.Get(ctx, input.LoanID, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetDisbursementOutput{Body: toDisbursementResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-disbursement-paid",
		Method:      http.MethodPost,
		Path:        "/api/v1/disbursements/mark-paid",
		Summary:     "Record settlement of a disbursement",
		Tags:        []string{"Disbursements"},
	}, func(ctx context.Context, input *MarkPaidInput) (*MarkPaidOutput, error) {
		if err := orchestrator.MarkPaid(ctx, input.Body.LoanID, input.Body.DisbursementID); err != nil {
			return nil, toHumaError(err)
		}
		d, err := orchestrator.Get(ctx, input.Body.LoanID, input.Body.DisbursementID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &MarkPaidOutput{Body: toDisbursementResponse(d)}, nil
	})
}

func handleEvent(ctx context.Context, engine *app.Engine, event domain.WorkflowEvent) (*EventOutput, error) {
	if err := engine.HandleEvent(ctx, event); err != nil {
		return nil, toHumaError(err)
	}

	loan, err := engine.GetLoan(ctx, event.LoanID)
	if err != nil {
		return nil, toHumaError(err)
	}

	return &EventOutput{Body: EventResponse{
		Event:  event.Type,
		LoanID: loan.ID,
		State:  loan.State,
	}}, nil
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrLoanNotFound) {
		return huma.Error404NotFound("loan not found")
	}
	if errors.Is(err, domain.ErrDisbursementNotFound) {
		return huma.Error404NotFound("disbursement not found")
	}

	var invalidState *domain.InvalidStateError
	if errors.As(err, &invalidState) {
		// Definition/ledger drift: an operator problem, not a caller one.
		return huma.Error500InternalServerError(invalidState.Error())
	}

	return huma.Error502BadGateway("dependency failure")
}
