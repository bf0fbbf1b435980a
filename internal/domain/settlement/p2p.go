package settlement

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/domain/p2p"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/user"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// SendP2P moves money between two students in one transaction. Rejections
// persist nothing.
func (o *Orchestrator) SendP2P(ctx context.Context, in p2p.SendInput) (*p2p.SendResult, error) {
	if in.ClientReference != "" {
		if res, err := o.priorTransfer(ctx, in.SenderID, in.ClientReference); res != nil || err != nil {
			return res, err
		}
	}
	if err := o.policy.Transfer.Check(in.Amount, money.NGN); err != nil {
		return nil, err
	}

	receiver, err := o.users.FindByIdentifier(ctx, in.ReceiverIdentifier)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, p2p.ErrReceiverNotFound
	}
	if err != nil {
		return nil, err
	}
	if receiver.ID == in.SenderID {
		return nil, ErrSelfTransfer
	}
	if !receiver.IsActive() {
		return nil, p2p.ErrReceiverNotFound
	}

	from, err := o.walletForUser(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}
	to, err := o.wallets.GetByUserID(ctx, receiver.ID)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	fee := o.policy.TransferFee
	t := &p2p.Transfer{
		ID:               uuid.New(),
		SenderID:         in.SenderID,
		ReceiverID:       receiver.ID,
		SenderWalletID:   from.ID,
		ReceiverWalletID: to.ID,
		Amount:           in.Amount,
		Fee:              fee,
		Note:             in.Note,
		CreatedAt:        now,
	}
	if in.ClientReference != "" {
		t.ClientReference = sql.NullString{String: in.ClientReference, Valid: true}
	}
	p := completedPayment(in.SenderID, from.ID, in.Amount, fee, payment.P2P{ReceiverWalletID: to.ID, TransferID: t.ID}, now)
	t.Reference = p.Reference

	var after *wallet.Wallet
	err = database.RunInTx(ctx, o.db, o.retry, "p2p", func(tx *sqlx.Tx) error {
		var err error
		after, err = o.engine.Transfer(ctx, tx, from.ID, to.ID, in.Amount, fee, wallet.PlatformWalletID, p.Reference)
		if err != nil {
			return err
		}
		if err := o.p2p.Insert(ctx, tx, t); err != nil {
			return err
		}
		return o.payments.Insert(ctx, tx, p)
	})
	if errors.Is(err, p2p.ErrDuplicateClientReference) {
		return o.priorTransfer(ctx, in.SenderID, in.ClientReference)
	}
	if err != nil {
		return nil, err
	}

	metrics.Settlements.WithLabelValues(string(p.Type), string(p.Status)).Inc()
	log.Info().Str("reference", p.Reference).Str("from_wallet", from.ID.String()).Str("to_wallet", to.ID.String()).
		Str("amount", in.Amount.String()).Str("fee", fee.String()).Msg("p2p transfer completed")

	o.afterCommit(ctx, &Result{Payment: p, Wallet: after, changed: true, touched: []uuid.UUID{to.ID}})
	return &p2p.SendResult{Transfer: t, Wallet: after}, nil
}

// priorTransfer returns the transfer an earlier request made with the same
// client reference, or nil when there is none.
func (o *Orchestrator) priorTransfer(ctx context.Context, senderID uuid.UUID, clientRef string) (*p2p.SendResult, error) {
	t, err := o.p2p.GetByClientReference(ctx, senderID, clientRef)
	if errors.Is(err, p2p.ErrTransferNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w, err := o.wallets.GetByID(ctx, t.SenderWalletID)
	if err != nil {
		return nil, err
	}
	metrics.DuplicateSettlements.WithLabelValues("client_reference").Inc()
	return &p2p.SendResult{Transfer: t, Wallet: w, AlreadyProcessed: true}, nil
}
