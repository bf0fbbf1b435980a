package settlement

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/billpay"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/remittance"
	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

type WithdrawInput struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	AccountNumber string
	BankCode      string
}

// InitiateWithdrawal pays out to a bank account in three phases: reserve,
// payout, then finalize or release once the provider reports back.
func (o *Orchestrator) InitiateWithdrawal(ctx context.Context, in WithdrawInput) (*Result, error) {
	if err := o.policy.Withdrawal.Check(in.Amount, money.NGN); err != nil {
		return nil, err
	}
	w, err := o.walletForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if o.payout == nil {
		return nil, ErrRailNotConfigured
	}

	acct, err := o.payout.ResolveRecipient(ctx, in.AccountNumber, in.BankCode)
	if err != nil {
		return nil, err
	}

	p := payment.New(in.UserID, w.ID, in.Amount, o.policy.WithdrawalFee, money.NGN, payment.MethodBankTransfer, payment.Withdrawal{
		BankAccount: payment.BankAccount{
			AccountNumber: acct.AccountNumber,
			BankCode:      acct.BankCode,
			AccountName:   acct.AccountName,
		},
		RecipientCode: acct.RecipientCode,
	})
	if err := o.startReserved(ctx, p, true, nil); err != nil {
		return nil, err
	}

	return o.dispatch(ctx, o.payout, p, gateway.Request{
		Reference: p.Reference,
		Amount:    p.Amount,
		Asset:     money.NGN,
		Narration: "CampusPay withdrawal",
		Bank:      acct,
	}, nil)
}

// InitiateRRR reserves the bill amount and asks Remita for a retrieval reference.
func (o *Orchestrator) InitiateRRR(ctx context.Context, in billpay.PayInput) (*billpay.Result, error) {
	if err := o.policy.RRR.Check(in.Amount, money.NGN); err != nil {
		return nil, err
	}
	w, err := o.walletForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if o.remita == nil {
		return nil, ErrRailNotConfigured
	}
	u, err := o.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	serviceType := in.ServiceTypeID
	if serviceType == "" {
		serviceType = o.policy.RRRServiceTypeID
	}
	op := payment.RRR{ServiceTypeID: serviceType, Description: in.Description}
	p := payment.New(in.UserID, w.ID, in.Amount, decimal.Zero, money.NGN, payment.MethodRRR, op)
	if err := o.startReserved(ctx, p, false, nil); err != nil {
		return nil, err
	}

	res, err := o.dispatch(ctx, o.remita, p, gateway.Request{
		Reference:     p.Reference,
		Amount:        p.Amount,
		Asset:         money.NGN,
		Payer:         gateway.Payer{Name: u.FullName, Email: u.Email, Phone: u.Phone.String},
		Narration:     in.Description,
		ServiceTypeID: serviceType,
	}, func(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, init *gateway.Initiation) error {
		op.RRR = init.ExternalReference
		p.Details = payment.Details{Operation: op}
		return o.payments.UpdateDetails(ctx, tx, p.ID, op)
	})
	if err != nil {
		return nil, err
	}
	return &billpay.Result{Payment: res.Payment, Wallet: res.Wallet, AlreadyProcessed: res.AlreadyProcessed}, nil
}

// RefreshRRR re-checks an RRR payment with Remita.
func (o *Orchestrator) RefreshRRR(ctx context.Context, userID uuid.UUID, reference string) (*billpay.Result, error) {
	p, err := o.payments.GetForUser(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	if p.Type != payment.TypeRRR {
		return nil, payment.ErrPaymentNotFound
	}
	res, err := o.Refresh(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	return &billpay.Result{Payment: res.Payment, Wallet: res.Wallet, AlreadyProcessed: res.AlreadyProcessed}, nil
}

// SendRemittance prices the transfer on its corridor and pays the NGN leg
// out like a withdrawal. The fee is held with the amount and goes to the
// platform wallet on completion.
func (o *Orchestrator) SendRemittance(ctx context.Context, in remittance.SendInput) (*remittance.Result, error) {
	quote, err := o.quoter.Quote(in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	if err := o.policy.Withdrawal.Check(in.Amount, money.NGN); err != nil {
		return nil, err
	}
	w, err := o.walletForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if o.payout == nil {
		return nil, ErrRailNotConfigured
	}

	acct, err := o.payout.ResolveRecipient(ctx, in.Recipient.AccountNumber, in.Recipient.BankCode)
	if err != nil {
		return nil, err
	}

	p := payment.New(in.UserID, w.ID, in.Amount, quote.Fee, money.NGN, payment.MethodBankTransfer, payment.Remittance{
		Recipient: payment.RemittanceRecipient{
			Name:          in.Recipient.Name,
			AccountNumber: acct.AccountNumber,
			BankCode:      acct.BankCode,
			Country:       strings.ToUpper(in.Recipient.Country),
		},
		Currency:      quote.Currency,
		Rate:          quote.Rate,
		PayoutAmount:  quote.PayoutAmount,
		RecipientCode: acct.RecipientCode,
	})
	if err := o.startReserved(ctx, p, true, nil); err != nil {
		return nil, err
	}

	res, err := o.dispatch(ctx, o.payout, p, gateway.Request{
		Reference: p.Reference,
		Amount:    p.Amount,
		Asset:     money.NGN,
		Narration: "CampusPay remittance " + quote.Currency,
		Bank:      acct,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &remittance.Result{Payment: res.Payment, Wallet: res.Wallet, Quote: quote}, nil
}
