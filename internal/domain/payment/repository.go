package payment

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
)

const paymentColumns = `
	id, reference, user_id, wallet_id, amount, fee, asset, type, method, status,
	provider, external_reference, authorization_url, details, gateway_response,
	failure_reason, completed_at, created_at, updated_at`

// qualified prefixes every column with alias, for joins.
func qualified(alias string) string {
	cols := strings.Split(paymentColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// Filter narrows payment history.
type Filter struct {
	Type   Type
	Status Status
}

type Repository struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewRepository(db *sqlx.DB, clk clock.Clock) *Repository {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Repository{db: db, clock: clk}
}

// Insert writes p. q is the surrounding transaction or the pool. created_at
// comes from the repository clock unless the caller set it, so payout limit
// windows and row timestamps agree.
func (r *Repository) Insert(ctx context.Context, q sqlx.ExtContext, p *Payment) error {
	now := r.clock.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (id, reference, user_id, wallet_id, amount, fee, asset, type, method, status,
			provider, external_reference, authorization_url, details, gateway_response,
			failure_reason, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		p.ID, p.Reference, p.UserID, p.WalletID, p.Amount, p.Fee, p.Asset, p.Type, p.Method, p.Status,
		p.Provider, p.ExternalReference, p.AuthorizationURL, p.Details, p.GatewayResponse,
		p.FailureReason, p.CompletedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return apperror.Persistence("insert payment", err)
	}
	return nil
}

func (r *Repository) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	return r.getOne(ctx, r.db, `SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.getOne(ctx, r.db, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetForUser hides other users' payments behind not-found.
func (r *Repository) GetForUser(ctx context.Context, userID uuid.UUID, reference string) (*Payment, error) {
	return r.getOne(ctx, r.db, `SELECT `+paymentColumns+` FROM payments WHERE reference = $1 AND user_id = $2`, reference, userID)
}

func (r *Repository) GetByExternalReference(ctx context.Context, provider, externalRef string) (*Payment, error) {
	return r.getOne(ctx, r.db, `
		SELECT `+paymentColumns+` FROM payments WHERE provider = $1 AND external_reference = $2`, provider, externalRef)
}

func (r *Repository) lockByReference(ctx context.Context, tx *sqlx.Tx, reference string) (*Payment, error) {
	return r.getOne(ctx, tx, `SELECT `+paymentColumns+` FROM payments WHERE reference = $1 FOR UPDATE`, reference)
}

func (r *Repository) lockByTxHash(ctx context.Context, tx *sqlx.Tx, hash string) (*Payment, error) {
	return r.getOne(ctx, tx, `
		SELECT `+qualified("p")+`
		FROM payments p
		JOIN crypto_transactions c ON c.payment_id = p.id
		WHERE c.tx_hash = $1
		FOR UPDATE OF p`, hash)
}

func (r *Repository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*Payment, error) {
	var p Payment
	err := sqlx.GetContext(ctx, q, &p, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, apperror.Persistence("get payment", err)
	}
	return &p, nil
}

// compareAndSetStatus moves p from its current status to next and writes the
// settlement fields. Zero rows affected means someone else moved it first.
func (r *Repository) compareAndSetStatus(ctx context.Context, tx *sqlx.Tx, p *Payment, next *Payment) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $3, provider = $4, external_reference = $5, authorization_url = $6,
			details = $7, gateway_response = $8, failure_reason = $9, completed_at = $10, updated_at = $11
		WHERE id = $1 AND status = $2`,
		p.ID, p.Status, next.Status, next.Provider, next.ExternalReference, next.AuthorizationURL,
		next.Details, next.GatewayResponse, next.FailureReason, next.CompletedAt, next.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return apperror.Persistence("update payment status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Persistence("update payment status", err)
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// UpdateDetails rewrites the operation payload without touching status.
func (r *Repository) UpdateDetails(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, op Operation) error {
	_, err := tx.ExecContext(ctx, `UPDATE payments SET details = $2, updated_at = now() WHERE id = $1`, id, Details{Operation: op})
	if err != nil {
		return apperror.Persistence("update payment details", err)
	}
	return nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, f Filter, limit, offset int) ([]*Payment, int, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{userID}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, "type = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payments WHERE `+cond, args...); err != nil {
		return nil, 0, apperror.Persistence("count payments", err)
	}

	args = append(args, limit, offset)
	payments := []*Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+` FROM payments
		WHERE `+cond+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, apperror.Persistence("list payments", err)
	}
	return payments, total, nil
}

// ListOpen returns PENDING and PROCESSING payments untouched since before cutoff, oldest first.
func (r *Repository) ListOpen(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error) {
	payments := []*Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status IN ('PENDING', 'PROCESSING') AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, apperror.Persistence("list open payments", err)
	}
	return payments, nil
}

func (r *Repository) CountOpen(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM payments WHERE status IN ('PENDING', 'PROCESSING')`); err != nil {
		return 0, apperror.Persistence("count open payments", err)
	}
	return n, nil
}

// SumPayoutsSince totals NGN bank payouts (withdrawals and remittances) that
// are in flight or completed since the given instant.
func (r *Repository) SumPayoutsSince(ctx context.Context, q sqlx.QueryerContext, walletID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := sqlx.GetContext(ctx, q, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE wallet_id = $1
		  AND type IN ('withdrawal', 'remittance')
		  AND status IN ('PENDING', 'PROCESSING', 'COMPLETED')
		  AND created_at >= $2`, walletID, since)
	if err != nil {
		return decimal.Zero, apperror.Persistence("sum payouts", err)
	}
	return total, nil
}

// ReservedNGN sums what open reserving payments hold out of available_balance.
func (r *Repository) ReservedNGN(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount + fee), 0) FROM payments
		WHERE wallet_id = $1
		  AND asset = 'NGN'
		  AND type IN ('withdrawal', 'rrr', 'remittance')
		  AND status IN ('PENDING', 'PROCESSING')`, walletID)
	if err != nil {
		return decimal.Zero, apperror.Persistence("sum reservations", err)
	}
	return total, nil
}
