package settlement

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/paystack"
	"github.com/campuspay/campuspay-api/internal/pkg/remita"
)

// Webhook handling results, used as metric labels.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookUnknown   = "unknown_reference"
	WebhookError     = "error"
)

// HandlePaystack applies a verified Paystack event and reports what happened.
// Errors are returned only for retry-worthy failures; the HTTP layer still answers 200.
func (o *Orchestrator) HandlePaystack(ctx context.Context, ev *paystack.Event) (string, error) {
	switch ev.Event {
	case paystack.EventChargeSuccess:
		return o.HandleChargeSuccess(ctx, ev)
	case paystack.EventTransferSuccess:
		return o.HandleTransferSuccess(ctx, ev)
	case paystack.EventTransferFailed:
		return o.HandleTransferFailed(ctx, ev)
	case paystack.EventTransferReversed:
		return o.HandleTransferReversed(ctx, ev)
	}
	log.Debug().Str("event", ev.Event).Msg("paystack event ignored")
	return WebhookIgnored, nil
}

func (o *Orchestrator) HandleChargeSuccess(ctx context.Context, ev *paystack.Event) (string, error) {
	return o.applyWebhook(ctx, ev, payment.TypeFunding)
}

func (o *Orchestrator) HandleTransferSuccess(ctx context.Context, ev *paystack.Event) (string, error) {
	return o.applyWebhook(ctx, ev, payment.TypeWithdrawal, payment.TypeRemittance)
}

func (o *Orchestrator) HandleTransferFailed(ctx context.Context, ev *paystack.Event) (string, error) {
	return o.applyWebhook(ctx, ev, payment.TypeWithdrawal, payment.TypeRemittance)
}

func (o *Orchestrator) HandleTransferReversed(ctx context.Context, ev *paystack.Event) (string, error) {
	return o.applyWebhook(ctx, ev, payment.TypeWithdrawal, payment.TypeRemittance)
}

func (o *Orchestrator) applyWebhook(ctx context.Context, ev *paystack.Event, types ...payment.Type) (string, error) {
	se, ok := ev.Settlement()
	if !ok {
		return WebhookIgnored, nil
	}
	return o.settleNotification(ctx, se, types...)
}

// HandleRemita applies one Remita payment notification.
func (o *Orchestrator) HandleRemita(ctx context.Context, n remita.Notification, raw []byte) (string, error) {
	se := n.Settlement(raw)
	if se.Reference == "" && se.ExternalReference != "" {
		p, err := o.payments.GetByExternalReference(ctx, o.remitaName(), se.ExternalReference)
		if isNotFound(err) {
			log.Warn().Str("rrr", se.ExternalReference).Msg("remita notification for unknown RRR")
			return WebhookUnknown, nil
		}
		if err != nil {
			return WebhookError, err
		}
		se.Reference = p.Reference
	}
	return o.settleNotification(ctx, se, payment.TypeRRR)
}

func (o *Orchestrator) settleNotification(ctx context.Context, se *gateway.SettlementEvent, types ...payment.Type) (string, error) {
	p, err := o.payments.GetByReference(ctx, se.Reference)
	if isNotFound(err) {
		log.Warn().Str("reference", se.Reference).Msg("webhook for unknown reference")
		return WebhookUnknown, nil
	}
	if err != nil {
		return WebhookError, err
	}
	if !typeIn(p.Type, types) {
		log.Warn().Str("reference", se.Reference).Str("type", string(p.Type)).Msg("webhook does not match payment type")
		return WebhookIgnored, nil
	}

	res, err := o.Settle(ctx, se)
	if err != nil {
		return WebhookError, err
	}
	if res.AlreadyProcessed {
		return WebhookDuplicate, nil
	}
	return WebhookApplied, nil
}

func (o *Orchestrator) remitaName() string {
	if o.remita == nil {
		return "remita"
	}
	return o.remita.Name()
}

func typeIn(t payment.Type, types []payment.Type) bool {
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}
