package p2p

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
)

const transferColumns = `id, reference, client_reference, sender_id, receiver_id, sender_wallet_id,
	receiver_wallet_id, amount, fee, note, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes t inside the transaction that moved the money.
func (r *Repository) Insert(ctx context.Context, tx *sqlx.Tx, t *Transfer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO p2p_transfers (id, reference, client_reference, sender_id, receiver_id,
			sender_wallet_id, receiver_wallet_id, amount, fee, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Reference, t.ClientReference, t.SenderID, t.ReceiverID,
		t.SenderWalletID, t.ReceiverWalletID, t.Amount, t.Fee, t.Note, t.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateClientReference
		}
		return apperror.Persistence("insert p2p transfer", err)
	}
	return nil
}

// GetByClientReference finds an earlier send with the same client reference.
func (r *Repository) GetByClientReference(ctx context.Context, senderID uuid.UUID, clientRef string) (*Transfer, error) {
	var t Transfer
	err := r.db.GetContext(ctx, &t, `
		SELECT `+transferColumns+` FROM p2p_transfers
		WHERE sender_id = $1 AND client_reference = $2`, senderID, clientRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, apperror.Persistence("get p2p transfer", err)
	}
	return &t, nil
}

// ListForUser returns sent and received transfers, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transfer, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM p2p_transfers WHERE sender_id = $1 OR receiver_id = $1`, userID); err != nil {
		return nil, 0, apperror.Persistence("count p2p transfers", err)
	}

	transfers := []*Transfer{}
	err := r.db.SelectContext(ctx, &transfers, `
		SELECT `+transferColumns+` FROM p2p_transfers
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, apperror.Persistence("list p2p transfers", err)
	}
	return transfers, total, nil
}
