package crypto

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
)

const txColumns = `id, payment_id, user_id, direction, asset, amount, tx_hash, to_address, status,
	confirmations, block_number, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// NormalizeHash lowercases a 0x hash so lookups are case-insensitive.
func NormalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

func (r *Repository) Insert(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := tx.ExecContext(ctx, `
		INSERT INTO crypto_transactions (id, payment_id, user_id, direction, asset, amount, tx_hash,
			to_address, status, confirmations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		t.ID, t.PaymentID, t.UserID, t.Direction, t.Asset, t.Amount, t.TxHash,
		t.ToAddress, t.Status, t.Confirmations, now)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateTxHash
	}
	if err != nil {
		return apperror.Persistence("insert crypto transaction", err)
	}
	return nil
}

func (r *Repository) GetByTxHash(ctx context.Context, hash string) (*Transaction, error) {
	return r.getOne(ctx, r.db, `SELECT `+txColumns+` FROM crypto_transactions WHERE tx_hash = $1`, NormalizeHash(hash))
}

// GetByPaymentID reads through q so settlement can see rows written in its tx.
func (r *Repository) GetByPaymentID(ctx context.Context, q sqlx.QueryerContext, paymentID uuid.UUID) (*Transaction, error) {
	return r.getOne(ctx, q, `SELECT `+txColumns+` FROM crypto_transactions WHERE payment_id = $1`, paymentID)
}

// Record stores a chain observation. Confirmations never go backwards.
func (r *Repository) Record(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, p Progress) error {
	var block sql.NullInt64
	if p.BlockNumber > 0 {
		block = sql.NullInt64{Int64: int64(p.BlockNumber), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE crypto_transactions
		SET status = $2, confirmations = GREATEST(confirmations, $3),
			block_number = COALESCE($4, block_number), updated_at = $5
		WHERE id = $1`,
		id, p.Status, int64(p.Confirmations), block, time.Now().UTC())
	if err != nil {
		return apperror.Persistence("update crypto transaction", err)
	}
	return nil
}

// SetTxHash attaches the hash of a broadcast withdrawal.
func (r *Repository) SetTxHash(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, hash string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE crypto_transactions SET tx_hash = $2, status = $3, updated_at = $4 WHERE id = $1`,
		id, NormalizeHash(hash), StatusConfirming, time.Now().UTC())
	if err != nil {
		return apperror.Persistence("set crypto tx hash", err)
	}
	return nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM crypto_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, apperror.Persistence("count crypto transactions", err)
	}
	txs := []*Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT `+txColumns+` FROM crypto_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, apperror.Persistence("list crypto transactions", err)
	}
	return txs, total, nil
}

func (r *Repository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*Transaction, error) {
	var t Transaction
	err := sqlx.GetContext(ctx, q, &t, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, apperror.Persistence("get crypto transaction", err)
	}
	return &t, nil
}
