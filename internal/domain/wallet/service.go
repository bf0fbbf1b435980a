package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/pkg/database"
)

// Service is the read side of the ledger plus the admin controls.
type Service struct {
	db     *sqlx.DB
	store  *Store
	engine *Engine
	retry  database.RetryPolicy
}

func NewService(db *sqlx.DB, store *Store, engine *Engine, retry database.RetryPolicy) *Service {
	return &Service{db: db, store: store, engine: engine, retry: retry}
}

func (s *Service) GetForUser(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.store.GetByUserID(ctx, userID)
}

func (s *Service) GetByID(ctx context.Context, walletID uuid.UUID) (*Wallet, error) {
	return s.store.GetByID(ctx, walletID)
}

func (s *Service) Audit(ctx context.Context, userID uuid.UUID, page, limit int) ([]AuditEntry, int, error) {
	w, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListAudit(ctx, w.ID, limit, (page-1)*limit)
}

func (s *Service) Freeze(ctx context.Context, walletID uuid.UUID, reason string) (*Wallet, error) {
	return s.setFrozen(ctx, walletID, true, reason)
}

func (s *Service) Unfreeze(ctx context.Context, walletID uuid.UUID) (*Wallet, error) {
	return s.setFrozen(ctx, walletID, false, "")
}

func (s *Service) setFrozen(ctx context.Context, walletID uuid.UUID, frozen bool, reason string) (*Wallet, error) {
	var w *Wallet
	err := database.RunInTx(ctx, s.db, s.retry, "wallet.set_frozen", func(tx *sqlx.Tx) error {
		var err error
		w, err = s.engine.SetFrozen(ctx, tx, walletID, frozen, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("wallet_id", walletID.String()).Bool("frozen", frozen).Str("reason", reason).Msg("wallet freeze state changed")
	return w, nil
}

func (s *Service) SetLimits(ctx context.Context, walletID uuid.UUID, limits Limits) (*Wallet, error) {
	var w *Wallet
	err := database.RunInTx(ctx, s.db, s.retry, "wallet.set_limits", func(tx *sqlx.Tx) error {
		var err error
		w, err = s.engine.SetLimits(ctx, tx, walletID, limits)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("wallet_id", walletID.String()).Str("daily", limits.Daily.String()).Str("monthly", limits.Monthly.String()).Msg("wallet limits updated")
	return w, nil
}
