package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

// Service is the read side of payment history.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID, reference string) (*Payment, error) {
	return s.repo.GetForUser(ctx, userID, reference)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, f Filter, page, limit int) ([]*Payment, int, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, apperror.Validation("type", "unknown payment type")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperror.Validation("status", "unknown payment status")
	}
	return s.repo.ListByUser(ctx, userID, f, limit, (page-1)*limit)
}
