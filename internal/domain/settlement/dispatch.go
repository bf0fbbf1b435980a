package settlement

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
)

// acceptedHook runs in the transaction that records a provider's acceptance.
type acceptedHook func(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, init *gateway.Initiation) error

// startReserved inserts p as PENDING and holds p.Total() in one transaction.
// extra runs last in the same transaction.
func (o *Orchestrator) startReserved(ctx context.Context, p *payment.Payment, dailyLimit bool, extra func(ctx context.Context, tx *sqlx.Tx) error) error {
	err := database.RunInTx(ctx, o.db, o.retry, "reserve."+string(p.Type), func(tx *sqlx.Tx) error {
		if dailyLimit {
			if err := o.checkWithdrawalLimit(ctx, tx, p); err != nil {
				return err
			}
		}
		if err := o.payments.Insert(ctx, tx, p); err != nil {
			return err
		}
		if _, err := o.engine.ReserveForWithdrawal(ctx, tx, p.WalletID, wallet.Funds{Asset: p.Asset, Amount: p.Total()}, p.Reference); err != nil {
			return err
		}
		if extra != nil {
			return extra(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.PaymentsInitiated.WithLabelValues(string(p.Type)).Inc()
	log.Info().Str("reference", p.Reference).Str("wallet_id", p.WalletID.String()).
		Str("amount", p.Total().String()).Str("asset", string(p.Asset)).Msg("funds reserved")
	return nil
}

// checkWithdrawalLimit sums today's payouts under the wallet lock so two
// concurrent withdrawals cannot both slip under the cap.
func (o *Orchestrator) checkWithdrawalLimit(ctx context.Context, tx *sqlx.Tx, p *payment.Payment) error {
	limit := o.policy.DailyWithdrawalLimit
	if !limit.IsPositive() {
		return nil
	}
	if _, err := o.wallets.Lock(ctx, tx, p.WalletID); err != nil {
		return err
	}
	spent, err := o.payments.SumPayoutsSince(ctx, tx, p.WalletID, wallet.DayStart(o.clock.Now(), o.engine.Location()))
	if err != nil {
		return err
	}
	if spent.Add(p.Amount).GreaterThan(limit) {
		return ErrWithdrawalLimitExceeded
	}
	return nil
}

// dispatch calls the provider outside any transaction and records the answer.
func (o *Orchestrator) dispatch(ctx context.Context, adapter gateway.Adapter, p *payment.Payment, req gateway.Request, onAccepted acceptedHook) (*Result, error) {
	init, err := adapter.Initiate(ctx, req)
	if err != nil {
		return o.initiateFailed(ctx, adapter.Name(), p, err, onAccepted)
	}

	var res *Result
	err = database.RunInTx(ctx, o.db, o.retry, "accept."+string(p.Type), func(tx *sqlx.Tx) error {
		c, err := o.guard.TryClaim(ctx, tx, p.Reference)
		if err != nil {
			return err
		}
		if !c.Claimed {
			// a webhook settled it before the initiate response came back
			res = &Result{Payment: c.Payment, AlreadyProcessed: true}
			return nil
		}

		cur := c.Payment
		res = &Result{Payment: cur}
		if cur.Status == payment.StatusPending {
			if err := o.guard.MarkProcessing(ctx, tx, cur, adapter.Name(), init.ExternalReference, init.AuthorizationURL, init.Raw); err != nil {
				return err
			}
			res.changed = true
			if onAccepted != nil {
				if err := onAccepted(ctx, tx, cur, init); err != nil {
					return err
				}
			}
		}

		if init.Status.Final() {
			settled, err := o.applyOutcome(ctx, tx, cur, &gateway.SettlementEvent{
				Reference:         cur.Reference,
				ExternalReference: init.ExternalReference,
				Outcome:           init.Status,
				Raw:               init.Raw,
			})
			if err != nil {
				return err
			}
			res = settled
		}
		return nil
	})
	if err != nil {
		// The provider accepted; the reconciler will pick the payment up.
		log.Error().Err(err).Str("reference", p.Reference).Msg("failed to record provider acceptance")
		return nil, err
	}

	if res.Wallet == nil {
		res.Wallet = o.currentWallet(ctx, res.Payment)
	}
	o.afterCommit(ctx, res)
	return res, nil
}

// initiateFailed closes a payment whose initiate call errored. Ambiguous
// failures on reserving payments may have moved money at the provider, so
// those stay PROCESSING for the reconciler and the caller sees success. A
// handle carried by the error is recorded so the reconciler can look it up.
func (o *Orchestrator) initiateFailed(ctx context.Context, provider string, p *payment.Payment, cause error, onAccepted acceptedHook) (*Result, error) {
	ambiguous := p.Type.Reserves() && gateway.IsAmbiguous(cause)
	externalRef := gateway.ExternalReferenceOf(cause)

	var res *Result
	err := database.RunInTx(ctx, o.db, o.retry, "initiate_failed."+string(p.Type), func(tx *sqlx.Tx) error {
		c, err := o.guard.TryClaim(ctx, tx, p.Reference)
		if err != nil {
			return err
		}
		if !c.Claimed {
			res = &Result{Payment: c.Payment, AlreadyProcessed: true}
			return nil
		}
		if ambiguous {
			res = &Result{Payment: c.Payment}
			if c.Payment.Status == payment.StatusPending {
				if err := o.guard.MarkProcessing(ctx, tx, c.Payment, provider, externalRef, "", nil); err != nil {
					return err
				}
				res.changed = true
				if externalRef != "" && onAccepted != nil {
					init := &gateway.Initiation{ExternalReference: externalRef, Status: gateway.OutcomePending}
					if err := onAccepted(ctx, tx, c.Payment, init); err != nil {
						return err
					}
				}
			}
			return nil
		}
		res, err = o.failAndRelease(ctx, tx, c.Payment, "initiate failed: "+cause.Error(), nil)
		return err
	})
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Str("reference", p.Reference).Msg("could not record initiate failure")
		return nil, cause
	}

	if res.Wallet == nil {
		res.Wallet = o.currentWallet(ctx, res.Payment)
	}
	o.afterCommit(ctx, res)

	if ambiguous || res.AlreadyProcessed {
		log.Warn().Err(cause).Str("reference", p.Reference).Str("external_reference", externalRef).
			Msg("initiate outcome unknown; left for reconciliation")
		return res, nil
	}
	return nil, cause
}

// adapterFor picks the rail that owns a payment type.
func (o *Orchestrator) adapterFor(t payment.Type) gateway.Adapter {
	switch t {
	case payment.TypeFunding:
		return o.charge
	case payment.TypeWithdrawal, payment.TypeRemittance:
		return o.payout
	case payment.TypeRRR:
		return o.remita
	case payment.TypeCryptoWithdrawal:
		return o.evm
	}
	return nil
}
