package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

const sqlStateUniqueViolation = "23505"

const userColumns = `id, email, phone, username, full_name, password_hash, role, is_banned, created_at, updated_at`

// Repository defines user data access interface
type Repository interface {
	// Create inserts u using q, so registration can share a transaction with the wallet.
	Create(ctx context.Context, q sqlx.ExecerContext, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// FindByIdentifier resolves an email, phone number or username.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, q sqlx.ExecerContext, u *User) error {
	query := `
		INSERT INTO users (id, email, phone, username, full_name, password_hash, role, is_banned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.Phone,
		u.Username,
		u.FullName,
		u.PasswordHash,
		u.Role,
		u.IsBanned,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateField(err); dup != nil {
			return dup
		}
		return apperror.Persistence("user repository create", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r *repository) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE email = lower($1) OR phone = $1 OR lower(username) = lower($1)
		LIMIT 1`, identifier)
}

// SetBanned bans or unbans; banned users cannot log in.
func (r *repository) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_banned = $2, updated_at = NOW() WHERE id = $1`, id, banned)
	if err != nil {
		return apperror.Persistence("user repository set banned", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) getOne(ctx context.Context, query string, args ...interface{}) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Persistence("user repository get", err)
	}
	return &u, nil
}

// duplicateField maps a unique violation on users to the field that collided.
func duplicateField(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != sqlStateUniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case "users_email_key":
		return ErrEmailAlreadyExists
	case "users_phone_key":
		return ErrPhoneAlreadyExists
	case "users_username_key":
		return ErrUsernameAlreadyExists
	}
	return nil
}
