package loan

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// Terms are the lending parameters from config.
type Terms struct {
	MaxPrincipal decimal.Decimal
	InterestBps  int64
}

// WalletReader resolves the borrower's wallet.
type WalletReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
}

// Service handles applications and the admin decision. Money moves through
// the settlement orchestrator.
type Service struct {
	db      *sqlx.DB
	repo    *Repository
	wallets WalletReader
	terms   Terms
	clock   clock.Clock
	retry   database.RetryPolicy
}

func NewService(db *sqlx.DB, repo *Repository, wallets WalletReader, terms Terms, clk clock.Clock, retry database.RetryPolicy) *Service {
	return &Service{db: db, repo: repo, wallets: wallets, terms: terms, clock: clk, retry: retry}
}

// Apply files a PENDING loan. One open loan per student.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, req *ApplyRequest) (*Loan, error) {
	if err := money.CheckAmount(req.Principal, money.NGN); err != nil {
		return nil, apperror.Validation("principal", err.Error())
	}
	if s.terms.MaxPrincipal.IsPositive() && req.Principal.GreaterThan(s.terms.MaxPrincipal) {
		return nil, ErrPrincipalTooLarge
	}

	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.IsFrozen {
		return nil, wallet.ErrWalletFrozen
	}

	interest := money.Percent(req.Principal, s.terms.InterestBps, money.NGN)
	l := &Loan{
		ID:                uuid.New(),
		UserID:            userID,
		WalletID:          w.ID,
		Principal:         req.Principal,
		Interest:          interest,
		AmountOutstanding: req.Principal.Add(interest),
		TermDays:          req.TermDays,
		Purpose:           strings.TrimSpace(req.Purpose),
		Status:            StatusPending,
		CreatedAt:         s.clock.Now(),
	}

	err = database.RunInTx(ctx, s.db, s.retry, "loan.apply", func(tx *sqlx.Tx) error {
		open, err := s.repo.HasOpen(ctx, tx, userID)
		if err != nil {
			return err
		}
		if open {
			return ErrOpenLoanExists
		}
		return s.repo.Insert(ctx, tx, l)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("loan_id", l.ID.String()).Str("user_id", userID.String()).Str("principal", l.Principal.String()).Msg("loan application filed")
	return l, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Loan, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListForAdmin(ctx context.Context, status Status, page, limit int) ([]*Loan, int, error) {
	return s.repo.ListByStatus(ctx, status, limit, (page-1)*limit)
}

// Reject closes a PENDING application. No money has moved yet.
func (s *Service) Reject(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	var l *Loan
	err := database.RunInTx(ctx, s.db, s.retry, "loan.reject", func(tx *sqlx.Tx) error {
		var err error
		l, err = s.repo.Lock(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if l.Status != StatusPending {
			return ErrLoanNotPending
		}
		l.Status = StatusRejected
		return s.repo.Save(ctx, tx, l)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("loan_id", loanID.String()).Msg("loan rejected")
	return l, nil
}

// SweepDefaults marks overdue active loans. It returns how many changed.
func (s *Service) SweepDefaults(ctx context.Context) (int, error) {
	ids, err := s.repo.MarkDefaulted(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		log.Warn().Str("loan_id", id.String()).Msg("loan defaulted")
	}
	return len(ids), nil
}
