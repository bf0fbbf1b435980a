package paystack

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// SignatureHeader carries the HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paystack-signature"

const (
	EventChargeSuccess    = "charge.success"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
	Raw   []byte    `json:"-"`
}

type EventData struct {
	Reference    string    `json:"reference"`
	Status       string    `json:"status"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	TransferCode string    `json:"transfer_code"`
	Reason       string    `json:"reason"`
	PaidAt       time.Time `json:"paid_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VerifySignature validates the webhook signature with the account secret key
func VerifySignature(payload []byte, signature, secretKey string) bool {
	return gateway.VerifyHMACSHA512(payload, signature, secretKey)
}

// GenerateSignature signs payload the way Paystack does, for tests and local replays
func GenerateSignature(payload []byte, secretKey string) string {
	return gateway.SignHMACSHA512(payload, secretKey)
}

func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode paystack event: %w", err)
	}
	if ev.Event == "" || ev.Data.Reference == "" {
		return nil, fmt.Errorf("paystack event missing event name or reference")
	}
	ev.Raw = payload
	return &ev, nil
}

// Settlement converts a webhook into the gateway-neutral settlement event.
// Unrecognized event names yield ok=false.
func (e *Event) Settlement() (*gateway.SettlementEvent, bool) {
	var outcome gateway.Outcome
	switch e.Event {
	case EventChargeSuccess, EventTransferSuccess:
		outcome = gateway.OutcomeSuccess
	case EventTransferFailed:
		outcome = gateway.OutcomeFailure
	case EventTransferReversed:
		outcome = gateway.OutcomeReversed
	default:
		return nil, false
	}

	ts := e.Data.PaidAt
	if ts.IsZero() {
		ts = e.Data.UpdatedAt
	}
	return &gateway.SettlementEvent{
		Reference:         e.Data.Reference,
		ExternalReference: e.Data.TransferCode,
		Outcome:           outcome,
		Amount:            money.FromMinor(e.Data.Amount),
		ExternalTimestamp: ts,
		Reason:            e.Data.Reason,
		Raw:               e.Raw,
	}, true
}
