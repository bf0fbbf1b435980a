package loan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApplyRequest for POST /loans
type ApplyRequest struct {
	Principal decimal.Decimal `json:"principal" validate:"money"`
	TermDays  int             `json:"term_days" validate:"required,min=7,max=365"`
	Purpose   string          `json:"purpose" validate:"required,max=255"`
}

// RepayRequest for POST /loans/{id}/repay
type RepayRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
}

type LoanResponse struct {
	ID                uuid.UUID       `json:"id"`
	Principal         decimal.Decimal `json:"principal"`
	Interest          decimal.Decimal `json:"interest"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding"`
	TermDays          int             `json:"term_days"`
	Purpose           string          `json:"purpose"`
	Status            Status          `json:"status"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	DisbursedAt       *time.Time      `json:"disbursed_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// AdminLoanResponse adds the borrower for the admin queue.
type AdminLoanResponse struct {
	*LoanResponse
	UserID   uuid.UUID `json:"user_id"`
	WalletID uuid.UUID `json:"wallet_id"`
}

func LoanResponseFromEntity(l *Loan) *LoanResponse {
	resp := &LoanResponse{
		ID:                l.ID,
		Principal:         l.Principal,
		Interest:          l.Interest,
		AmountOutstanding: l.AmountOutstanding,
		TermDays:          l.TermDays,
		Purpose:           l.Purpose,
		Status:            l.Status,
		CreatedAt:         l.CreatedAt,
	}
	if l.DueDate.Valid {
		resp.DueDate = &l.DueDate.Time
	}
	if l.DisbursedAt.Valid {
		resp.DisbursedAt = &l.DisbursedAt.Time
	}
	if l.CompletedAt.Valid {
		resp.CompletedAt = &l.CompletedAt.Time
	}
	return resp
}

func LoanResponsesFromEntities(loans []*Loan) []*LoanResponse {
	out := make([]*LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, LoanResponseFromEntity(l))
	}
	return out
}
