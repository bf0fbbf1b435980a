package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

const walletColumns = `
	id, user_id, kind, balance, available_balance, ledger_balance,
	usdt_balance, usdc_balance, daily_limit, monthly_limit,
	daily_funding_spent, monthly_funding_spent, daily_reset_at, monthly_reset_at,
	is_frozen, frozen_reason, created_at, updated_at`

const auditColumns = `
	seq, id, wallet_id, type, asset, amount, previous_balance, new_balance,
	reference, reason, prev_hash, hash, created_at`

// Store owns the wallets and wallet_audit tables. Balance writes go through
// applyDelta only.
type Store struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewStore(db *sqlx.DB, clk clock.Clock) *Store {
	return &Store{db: db, clock: clk}
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := s.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, apperror.Persistence("get wallet", err)
	}
	return &w, nil
}

func (s *Store) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := s.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, apperror.Persistence("get wallet by user", err)
	}
	return &w, nil
}

// CreateForUser inserts the user's wallet inside the registration transaction.
func (s *Store) CreateForUser(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, limits Limits) (*Wallet, error) {
	now := s.clock.Now()
	var w Wallet
	err := tx.GetContext(ctx, &w, `
		INSERT INTO wallets (id, user_id, kind, daily_limit, monthly_limit, daily_reset_at, monthly_reset_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $6, $6)
		RETURNING `+walletColumns,
		uuid.New(), userID, KindUser, limits.Daily, limits.Monthly, now)
	if err != nil {
		return nil, apperror.Persistence("create wallet", err)
	}
	return &w, nil
}

// Lock reads the wallet row FOR UPDATE. Every balance change starts here.
func (s *Store) Lock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, apperror.Persistence("lock wallet", err)
	}
	return &w, nil
}

// applyDelta locks the wallet, computes every resulting field and writes them
// in one UPDATE. Nothing is written when any field would go negative.
func (s *Store) applyDelta(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, d Delta) (before, after *Wallet, err error) {
	before, err = s.Lock(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	next, err := d.apply(*before)
	if err != nil {
		return nil, nil, err
	}
	next.UpdatedAt = s.clock.Now()

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $2, available_balance = $3, ledger_balance = $4,
			usdt_balance = $5, usdc_balance = $6, updated_at = $7
		WHERE id = $1`,
		id, next.Balance, next.AvailableBalance, next.LedgerBalance,
		next.USDTBalance, next.USDCBalance, next.UpdatedAt)
	if err != nil {
		if database.IsCheckViolation(err) {
			return nil, nil, ErrNegativeBalance
		}
		return nil, nil, apperror.Persistence("update wallet balance", err)
	}
	return before, &next, nil
}

// recordAudit appends e to the wallet's hash chain. Callers hold the wallet
// row lock, which serializes the chain.
func (s *Store) recordAudit(ctx context.Context, tx *sqlx.Tx, e *AuditEntry) error {
	var prev string
	err := tx.GetContext(ctx, &prev, `
		SELECT hash FROM wallet_audit WHERE wallet_id = $1 ORDER BY seq DESC LIMIT 1`, e.WalletID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return apperror.Persistence("read audit head", err)
	}

	e.ID = uuid.New()
	e.CreatedAt = s.clock.Now().UTC().Truncate(time.Microsecond)
	e.PrevHash = prev
	e.Hash = ComputeHash(prev, *e)

	err = tx.GetContext(ctx, &e.Seq, `
		INSERT INTO wallet_audit (id, wallet_id, type, asset, amount, previous_balance, new_balance,
			reference, reason, prev_hash, hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq`,
		e.ID, e.WalletID, e.Type, e.Asset, e.Amount, e.PreviousBalance, e.NewBalance,
		e.Reference, e.Reason, e.PrevHash, e.Hash, e.CreatedAt)
	if err != nil {
		return apperror.Persistence("insert audit", err)
	}
	return nil
}

func (s *Store) setFrozen(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, frozen bool, reason string) error {
	var r sql.NullString
	if frozen {
		r = sql.NullString{String: reason, Valid: reason != ""}
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET is_frozen = $2, frozen_reason = $3, updated_at = $4 WHERE id = $1`,
		id, frozen, r, s.clock.Now())
	if err != nil {
		return apperror.Persistence("set wallet frozen", err)
	}
	return nil
}

func (s *Store) setLimits(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, limits Limits) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET daily_limit = $2, monthly_limit = $3, updated_at = $4 WHERE id = $1`,
		id, limits.Daily, limits.Monthly, s.clock.Now())
	if err != nil {
		return apperror.Persistence("set wallet limits", err)
	}
	return nil
}

func (s *Store) saveFundingCounters(ctx context.Context, tx *sqlx.Tx, w *Wallet) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET daily_funding_spent = $2, monthly_funding_spent = $3,
			daily_reset_at = $4, monthly_reset_at = $5, updated_at = $6
		WHERE id = $1`,
		w.ID, w.DailyFundingSpent, w.MonthlyFundingSpent, w.DailyResetAt, w.MonthlyResetAt, s.clock.Now())
	if err != nil {
		return apperror.Persistence("save funding counters", err)
	}
	return nil
}

// ListAudit returns a page of the wallet's history, newest first.
func (s *Store) ListAudit(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]AuditEntry, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM wallet_audit WHERE wallet_id = $1`, walletID); err != nil {
		return nil, 0, apperror.Persistence("count audit", err)
	}
	entries := []AuditEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT `+auditColumns+` FROM wallet_audit
		WHERE wallet_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3`, walletID, limit, offset)
	if err != nil {
		return nil, 0, apperror.Persistence("list audit", err)
	}
	return entries, total, nil
}

// AuditChain returns the wallet's full history in chain order.
func (s *Store) AuditChain(ctx context.Context, walletID uuid.UUID) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT `+auditColumns+` FROM wallet_audit WHERE wallet_id = $1 ORDER BY seq`, walletID)
	if err != nil {
		return nil, apperror.Persistence("read audit chain", err)
	}
	return entries, nil
}

// ListIDs pages through every wallet id, platform wallet included.
func (s *Store) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM wallets WHERE id > $1 ORDER BY id LIMIT $2`, after, limit)
	if err != nil {
		return nil, apperror.Persistence("list wallet ids", err)
	}
	return ids, nil
}

// TotalBalance sums balance across all wallets.
func (s *Store) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(balance), 0) FROM wallets`); err != nil {
		return decimal.Zero, apperror.Persistence("sum balances", err)
	}
	return total, nil
}

// auditBalance is the field an audit row tracks for a movement of asset.
// Reservations move available_balance; everything else moves balance.
func auditBalance(w *Wallet, asset money.Asset, typ AuditType) decimal.Decimal {
	if asset.IsCrypto() {
		return w.Crypto(asset)
	}
	if typ == AuditReserve || typ == AuditRelease {
		return w.AvailableBalance
	}
	return w.Balance
}
