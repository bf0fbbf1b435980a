package payment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
)

// Claim is the outcome of TryClaim. Claimed=false means the payment is
// already terminal and the caller must commit nothing.
type Claim struct {
	Claimed bool
	Payment *Payment
}

// Guard makes settlement idempotent. The status read and the status write
// both happen under the payment row lock inside the caller's transaction.
type Guard struct {
	repo  *Repository
	clock clock.Clock
}

func NewGuard(repo *Repository, clk clock.Clock) *Guard {
	return &Guard{repo: repo, clock: clk}
}

func (g *Guard) TryClaim(ctx context.Context, tx *sqlx.Tx, reference string) (*Claim, error) {
	p, err := g.repo.lockByReference(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	return g.claim(p, "reference"), nil
}

// TryClaimTxHash claims by on-chain hash, independent of the payment reference.
func (g *Guard) TryClaimTxHash(ctx context.Context, tx *sqlx.Tx, hash string) (*Claim, error) {
	p, err := g.repo.lockByTxHash(ctx, tx, hash)
	if err != nil {
		return nil, err
	}
	return g.claim(p, "tx_hash"), nil
}

// TryClaimReversal claims like TryClaim, and also claims a COMPLETED payout
// of a reversible type so the reversal can refund it.
func (g *Guard) TryClaimReversal(ctx context.Context, tx *sqlx.Tx, reference string) (*Claim, error) {
	p, err := g.repo.lockByReference(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCompleted && p.Type.Reversible() {
		return &Claim{Claimed: true, Payment: p}, nil
	}
	return g.claim(p, "reference"), nil
}

func (g *Guard) claim(p *Payment, source string) *Claim {
	if p.Status.Terminal() {
		metrics.DuplicateSettlements.WithLabelValues(source).Inc()
		log.Debug().Str("reference", p.Reference).Str("status", string(p.Status)).Msg("settlement already applied")
		return &Claim{Claimed: false, Payment: p}
	}
	return &Claim{Claimed: true, Payment: p}
}

// Transition moves p to the next status. p is updated in place on success.
func (g *Guard) Transition(ctx context.Context, tx *sqlx.Tx, p *Payment, to Status, gatewayResponse []byte, reason string) error {
	return g.apply(ctx, tx, p, to, func(next *Payment) {
		if len(gatewayResponse) > 0 {
			next.GatewayResponse = JSONRawMessage(gatewayResponse)
		}
		if reason != "" {
			next.FailureReason = sql.NullString{String: reason, Valid: true}
		}
	})
}

// MarkProcessing records the provider's handle and moves PENDING to PROCESSING.
func (g *Guard) MarkProcessing(ctx context.Context, tx *sqlx.Tx, p *Payment, provider, externalRef, authorizationURL string, raw []byte) error {
	return g.apply(ctx, tx, p, StatusProcessing, func(next *Payment) {
		next.Provider = nullString(provider)
		next.ExternalReference = nullString(externalRef)
		next.AuthorizationURL = nullString(authorizationURL)
		if len(raw) > 0 {
			next.GatewayResponse = JSONRawMessage(raw)
		}
	})
}

// Reload re-reads p under lock, for callers that resumed outside a transaction.
func (g *Guard) Reload(ctx context.Context, tx *sqlx.Tx, p *Payment) error {
	fresh, err := g.repo.lockByReference(ctx, tx, p.Reference)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

// TransitionWithDetails also rewrites the operation payload, e.g. to store a tx hash.
func (g *Guard) TransitionWithDetails(ctx context.Context, tx *sqlx.Tx, p *Payment, to Status, op Operation, externalRef string) error {
	return g.apply(ctx, tx, p, to, func(next *Payment) {
		next.Details = Details{Operation: op}
		if externalRef != "" {
			next.ExternalReference = nullString(externalRef)
		}
	})
}

func (g *Guard) apply(ctx context.Context, tx *sqlx.Tx, p *Payment, to Status, mutate func(next *Payment)) error {
	if !CanTransition(p.Status, to) || (p.Status == StatusCompleted && !p.Type.Reversible()) {
		return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, p.Status, to, p.Reference)
	}
	next := *p
	next.Status = to
	next.UpdatedAt = g.clock.Now()
	if to == StatusCompleted {
		next.CompletedAt = sql.NullTime{Time: next.UpdatedAt, Valid: true}
	}
	mutate(&next)

	if err := g.repo.compareAndSetStatus(ctx, tx, p, &next); err != nil {
		return err
	}
	if to.Terminal() {
		metrics.Settlements.WithLabelValues(string(p.Type), string(to)).Inc()
	}
	*p = next
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
