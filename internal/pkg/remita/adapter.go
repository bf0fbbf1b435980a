package remita

import (
	"context"
	"time"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
)

// SignatureHeader carries the HMAC-SHA512 of a notification body, keyed by the API key.
const SignatureHeader = "x-remita-signature"

type Adapter struct {
	client *Client
}

func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string { return provider }

func (a *Adapter) Initiate(ctx context.Context, req gateway.Request) (*gateway.Initiation, error) {
	invoice, err := a.client.GenerateRRR(ctx, InvoiceRequest{
		ServiceTypeID: req.ServiceTypeID,
		Amount:        req.Amount,
		OrderID:       req.Reference,
		PayerName:     req.Payer.Name,
		PayerEmail:    req.Payer.Email,
		PayerPhone:    req.Payer.Phone,
		Description:   req.Narration,
	})
	if err != nil {
		return nil, err
	}
	return &gateway.Initiation{
		ExternalReference: invoice.RRR,
		Status:            gateway.OutcomePending,
	}, nil
}

// CheckStatus queries by RRR when one was issued, otherwise by our order id.
func (a *Adapter) CheckStatus(ctx context.Context, lookup gateway.Lookup) (*gateway.SettlementEvent, error) {
	var (
		st  *Status
		err error
	)
	if lookup.ExternalReference != "" {
		st, err = a.client.StatusByRRR(ctx, lookup.ExternalReference)
	} else {
		st, err = a.client.StatusByOrderID(ctx, lookup.Reference)
	}
	if err != nil {
		return nil, err
	}

	rrr := st.RRR
	if rrr == "" {
		rrr = lookup.ExternalReference
	}
	return &gateway.SettlementEvent{
		Reference:         lookup.Reference,
		ExternalReference: rrr,
		Outcome:           StatusOutcome(st.Status),
		Amount:            st.Amount,
		ExternalTimestamp: parseTime(st.TransactionTime),
		Reason:            st.Message,
		Raw:               st.Raw,
	}, nil
}

func (a *Adapter) VerifySignature(payload []byte, signature string) bool {
	return gateway.VerifyHMACSHA512(payload, signature, a.client.config.APIKey)
}

// StatusOutcome maps Remita status codes: 00 and 01 are paid, 021 and 025
// are awaiting payment, 404-style codes mean the order is unknown.
func StatusOutcome(code string) gateway.Outcome {
	switch code {
	case "00", "01":
		return gateway.OutcomeSuccess
	case "021", "025", "":
		return gateway.OutcomePending
	case "998", "999":
		return gateway.OutcomeNotFound
	default:
		return gateway.OutcomeFailure
	}
}

func parseTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "02/01/2006 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
