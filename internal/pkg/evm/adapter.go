package evm

import (
	"context"
	"time"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
)

// Adapter exposes token withdrawals through the common gateway contract.
// Deposits are verified with Client.VerifyDeposit since they start on chain.
type Adapter struct {
	client *Client
}

func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string { return provider }

func (a *Adapter) Initiate(ctx context.Context, req gateway.Request) (*gateway.Initiation, error) {
	hash, err := a.client.SendToken(ctx, req.Asset, req.ToAddress, req.Amount)
	if err != nil {
		return nil, err
	}
	return &gateway.Initiation{ExternalReference: hash, Status: gateway.OutcomePending}, nil
}

func (a *Adapter) CheckStatus(ctx context.Context, lookup gateway.Lookup) (*gateway.SettlementEvent, error) {
	if lookup.ExternalReference == "" {
		return &gateway.SettlementEvent{Reference: lookup.Reference, Outcome: gateway.OutcomeNotFound}, nil
	}
	outcome, confirmations, err := a.client.ReceiptOutcome(ctx, lookup.ExternalReference)
	if err != nil {
		return nil, err
	}
	return &gateway.SettlementEvent{
		Reference:         lookup.Reference,
		ExternalReference: lookup.ExternalReference,
		Outcome:           outcome,
		Confirmations:     confirmations,
		ExternalTimestamp: time.Now().UTC(),
	}, nil
}

// VerifySignature always fails: chain state is read, never pushed to us.
func (a *Adapter) VerifySignature(payload []byte, signature string) bool {
	return false
}
