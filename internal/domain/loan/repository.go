package loan

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

const loanColumns = `id, user_id, wallet_id, principal, interest, amount_outstanding, term_days, purpose,
	status, due_date, disbursed_at, completed_at, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, tx *sqlx.Tx, l *Loan) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loans (id, user_id, wallet_id, principal, interest, amount_outstanding, term_days,
			purpose, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		l.ID, l.UserID, l.WalletID, l.Principal, l.Interest, l.AmountOutstanding, l.TermDays,
		l.Purpose, l.Status, l.CreatedAt)
	if err != nil {
		return apperror.Persistence("insert loan", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Loan, error) {
	return r.getOne(ctx, r.db, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
}

// Lock reads the loan FOR UPDATE inside tx.
func (r *Repository) Lock(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Loan, error) {
	return r.getOne(ctx, tx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id)
}

// HasOpen reports whether the user has an open loan. It locks
// those rows so two concurrent applications serialize.
func (r *Repository) HasOpen(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids, `
		SELECT id FROM loans WHERE user_id = $1 AND status IN ('PENDING', 'ACTIVE', 'DEFAULTED') FOR UPDATE`, userID)
	if err != nil {
		return false, apperror.Persistence("check open loans", err)
	}
	return len(ids) > 0, nil
}

// Save writes the mutable lifecycle fields.
func (r *Repository) Save(ctx context.Context, tx *sqlx.Tx, l *Loan) error {
	l.UpdatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET amount_outstanding = $2, status = $3, due_date = $4, disbursed_at = $5,
			completed_at = $6, updated_at = $7
		WHERE id = $1`,
		l.ID, l.AmountOutstanding, l.Status, l.DueDate, l.DisbursedAt, l.CompletedAt, l.UpdatedAt)
	if err != nil {
		return apperror.Persistence("update loan", err)
	}
	return nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Loan, error) {
	loans := []*Loan{}
	err := r.db.SelectContext(ctx, &loans, `
		SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, apperror.Persistence("list loans", err)
	}
	return loans, nil
}

// ListByStatus is the admin queue. An empty status lists everything.
func (r *Repository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Loan, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM loans WHERE $1 = '' OR status = $1`, status); err != nil {
		return nil, 0, apperror.Persistence("count loans", err)
	}
	loans := []*Loan{}
	err := r.db.SelectContext(ctx, &loans, `
		SELECT `+loanColumns+` FROM loans
		WHERE $1 = '' OR status = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, apperror.Persistence("list loans", err)
	}
	return loans, total, nil
}

// MarkDefaulted moves active loans past their due date to DEFAULTED.
func (r *Repository) MarkDefaulted(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE loans SET status = 'DEFAULTED', updated_at = $1
		WHERE status = 'ACTIVE' AND due_date < $1
		RETURNING id`, now)
	if err != nil {
		return nil, apperror.Persistence("mark loans defaulted", err)
	}
	return ids, nil
}

func (r *Repository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*Loan, error) {
	var l Loan
	err := sqlx.GetContext(ctx, q, &l, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, apperror.Persistence("get loan", err)
	}
	return &l, nil
}
