package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

type PaymentResponse struct {
	ID                uuid.UUID       `json:"id"`
	Reference         string          `json:"reference"`
	WalletID          uuid.UUID       `json:"wallet_id"`
	Amount            decimal.Decimal `json:"amount"`
	Fee               decimal.Decimal `json:"fee"`
	Asset             money.Asset     `json:"asset"`
	Type              Type            `json:"type"`
	Method            Method          `json:"method"`
	Status            Status          `json:"status"`
	Provider          string          `json:"provider,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	AuthorizationURL  string          `json:"authorization_url,omitempty"`
	Details           Operation       `json:"details,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func ResponseFromEntity(p *Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	resp := &PaymentResponse{
		ID:                p.ID,
		Reference:         p.Reference,
		WalletID:          p.WalletID,
		Amount:            p.Amount,
		Fee:               p.Fee,
		Asset:             p.Asset,
		Type:              p.Type,
		Method:            p.Method,
		Status:            p.Status,
		Provider:          p.Provider.String,
		ExternalReference: p.ExternalReference.String,
		AuthorizationURL:  p.AuthorizationURL.String,
		Details:           p.Details.Operation,
		FailureReason:     p.FailureReason.String,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.CompletedAt.Valid {
		t := p.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

func ResponsesFromEntities(payments []*Payment) []*PaymentResponse {
	out := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, ResponseFromEntity(p))
	}
	return out
}
