package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/domain/user"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/jwt"
	"github.com/campuspay/campuspay-api/internal/pkg/password"
)

// WalletStore is the slice of the ledger store auth needs.
type WalletStore interface {
	CreateForUser(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, limits wallet.Limits) (*wallet.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
}

// Service handles authentication business logic
type Service struct {
	db         *sqlx.DB
	users      user.Repository
	wallets    WalletStore
	jwtService *jwt.Service
	refresh    RefreshStore
	limits     wallet.Limits
	retry      database.RetryPolicy
}

func NewService(db *sqlx.DB, users user.Repository, wallets WalletStore, jwtService *jwt.Service, refresh RefreshStore, limits wallet.Limits, retry database.RetryPolicy) *Service {
	return &Service{
		db:         db,
		users:      users,
		wallets:    wallets,
		jwtService: jwtService,
		refresh:    refresh,
		limits:     limits,
		retry:      retry,
	}
}

// Register creates the user and its wallet in one transaction.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if err := password.CheckStrength(req.Password); err != nil {
		return nil, apperror.Validation("password", err.Error())
	}
	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &user.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(req.Email),
		Phone:        optional(req.Phone),
		Username:     normalizeUsername(req.Username),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Role:         user.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var w *wallet.Wallet
	err = database.RunInTx(ctx, s.db, s.retry, "auth.register", func(tx *sqlx.Tx) error {
		if err := s.users.Create(ctx, tx, u); err != nil {
			return err
		}
		var err error
		w, err = s.wallets.CreateForUser(ctx, tx, u.ID, s.limits)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", u.ID.String()).Str("wallet_id", w.ID.String()).Msg("student registered")
	return s.issue(ctx, u, w.ID)
}

// Login authenticates by email, phone or username.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	u, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !password.Verify(req.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if u.IsBanned {
		return nil, ErrUserBanned
	}

	walletID, err := s.walletID(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u, walletID)
}

// Refresh rotates the pair. The presented refresh token is consumed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if refreshToken == "" {
		return nil, ErrRefreshTokenRequired
	}
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	userID, err := s.refresh.Take(ctx, jwt.HashRefreshToken(refreshToken))
	if err != nil || userID != claims.UserID {
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if u.IsBanned {
		return nil, ErrUserBanned
	}
	walletID, err := s.walletID(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u, walletID)
}

// Logout invalidates refresh token
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refresh.Delete(ctx, jwt.HashRefreshToken(refreshToken))
}

// Me returns current user by ID
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	walletID, err := s.walletID(ctx, u)
	if err != nil {
		return nil, err
	}
	resp := NewUserResponse(u, walletID)
	return &resp, nil
}

// walletID is uuid.Nil for admins, who hold no wallet.
func (s *Service) walletID(ctx context.Context, u *user.User) (uuid.UUID, error) {
	w, err := s.wallets.GetByUserID(ctx, u.ID)
	if errors.Is(err, wallet.ErrWalletNotFound) && u.IsAdmin() {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return w.ID, nil
}

func (s *Service) issue(ctx context.Context, u *user.User, walletID uuid.UUID) (*AuthResponse, error) {
	pair, err := s.jwtService.GeneratePair(u.ID, walletID, string(u.Role))
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Save(ctx, jwt.HashRefreshToken(pair.RefreshToken), u.ID, s.jwtService.RefreshTTL()); err != nil {
		return nil, err
	}
	return &AuthResponse{
		User:   NewUserResponse(u, walletID),
		Tokens: newTokensResponse(pair),
	}, nil
}
