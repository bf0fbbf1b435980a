package paystack

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// ChargeAdapter funds wallets through hosted card checkout.
type ChargeAdapter struct {
	client *Client
}

func NewChargeAdapter(client *Client) *ChargeAdapter {
	return &ChargeAdapter{client: client}
}

func (a *ChargeAdapter) Name() string { return provider }

func (a *ChargeAdapter) Initiate(ctx context.Context, req gateway.Request) (*gateway.Initiation, error) {
	init, err := a.client.InitializeCharge(ctx, ChargeRequest{
		Email:       req.Payer.Email,
		Amount:      money.ToMinor(req.Amount),
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &gateway.Initiation{
		ExternalReference: init.AccessCode,
		AuthorizationURL:  init.AuthorizationURL,
		AccessCode:        init.AccessCode,
		Status:            gateway.OutcomePending,
	}, nil
}

func (a *ChargeAdapter) CheckStatus(ctx context.Context, lookup gateway.Lookup) (*gateway.SettlementEvent, error) {
	charge, err := a.client.VerifyCharge(ctx, lookup.Reference)
	if err != nil {
		if isNotFound(err) {
			return &gateway.SettlementEvent{Reference: lookup.Reference, Outcome: gateway.OutcomeNotFound}, nil
		}
		return nil, err
	}
	return &gateway.SettlementEvent{
		Reference:         charge.Reference,
		Outcome:           chargeOutcome(charge.Status),
		Amount:            money.FromMinor(charge.Amount),
		ExternalTimestamp: charge.PaidAt,
		Reason:            charge.GatewayResponse,
		Raw:               charge.Raw,
	}, nil
}

func (a *ChargeAdapter) VerifySignature(payload []byte, signature string) bool {
	return VerifySignature(payload, signature, a.client.config.SecretKey)
}

// PayoutAdapter sends money from the platform balance to bank accounts.
type PayoutAdapter struct {
	client *Client
}

func NewPayoutAdapter(client *Client) *PayoutAdapter {
	return &PayoutAdapter{client: client}
}

func (a *PayoutAdapter) Name() string { return provider }

// ResolveRecipient checks the account and registers it for transfers.
func (a *PayoutAdapter) ResolveRecipient(ctx context.Context, accountNumber, bankCode string) (*gateway.BankAccount, error) {
	account, err := a.client.ResolveAccountName(ctx, accountNumber, bankCode)
	if err != nil {
		return nil, err
	}
	code, err := a.client.CreatePayoutRecipient(ctx, account.AccountName, accountNumber, bankCode)
	if err != nil {
		return nil, err
	}
	return &gateway.BankAccount{
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		AccountName:   account.AccountName,
		RecipientCode: code,
	}, nil
}

func (a *PayoutAdapter) Initiate(ctx context.Context, req gateway.Request) (*gateway.Initiation, error) {
	if req.Bank == nil || req.Bank.RecipientCode == "" {
		return nil, gateway.Rejected(provider, "initiate_payout", 0, errors.New("missing recipient code"))
	}
	transfer, err := a.client.InitiatePayout(ctx, money.ToMinor(req.Amount), req.Bank.RecipientCode, req.Reference, req.Narration)
	if err != nil {
		return nil, err
	}
	return &gateway.Initiation{
		ExternalReference: transfer.TransferCode,
		Status:            transferOutcome(transfer.Status),
		Raw:               transfer.Raw,
	}, nil
}

func (a *PayoutAdapter) CheckStatus(ctx context.Context, lookup gateway.Lookup) (*gateway.SettlementEvent, error) {
	transfer, err := a.client.VerifyTransfer(ctx, lookup.Reference)
	if err != nil {
		if isNotFound(err) {
			return &gateway.SettlementEvent{Reference: lookup.Reference, Outcome: gateway.OutcomeNotFound}, nil
		}
		return nil, err
	}
	return &gateway.SettlementEvent{
		Reference:         transfer.Reference,
		ExternalReference: transfer.TransferCode,
		Outcome:           transferOutcome(transfer.Status),
		Amount:            money.FromMinor(transfer.Amount),
		ExternalTimestamp: transfer.UpdatedAt,
		Reason:            transfer.Reason,
		Raw:               transfer.Raw,
	}, nil
}

func (a *PayoutAdapter) VerifySignature(payload []byte, signature string) bool {
	return VerifySignature(payload, signature, a.client.config.SecretKey)
}

func chargeOutcome(status string) gateway.Outcome {
	switch strings.ToLower(status) {
	case "success":
		return gateway.OutcomeSuccess
	case "failed":
		return gateway.OutcomeFailure
	case "reversed":
		return gateway.OutcomeReversed
	default:
		// abandoned, ongoing and pending checkouts can still be paid
		return gateway.OutcomePending
	}
}

func transferOutcome(status string) gateway.Outcome {
	switch strings.ToLower(status) {
	case "success":
		return gateway.OutcomeSuccess
	case "failed", "rejected", "abandoned":
		return gateway.OutcomeFailure
	case "reversed":
		return gateway.OutcomeReversed
	default:
		return gateway.OutcomePending
	}
}

func isNotFound(err error) bool {
	var gwErr *gateway.Error
	return errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound
}
