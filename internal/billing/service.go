package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/personapath/personapath-backend/pkg/db/models"
)

// ServiceParams groups dependencies for the billing read service.
type ServiceParams struct {
	Repo Repository
}

// Service exposes the locally stored billing state.
type Service struct {
	repo Repository
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// Subscription returns the caller's subscription record, if any.
func (s *Service) Subscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.repo.FindSubscriptionByUser(ctx, userID)
}

// PromoCounter returns the current promotional counter state.
func (s *Service) PromoCounter(ctx context.Context) (*models.PromoCounter, error) {
	return s.repo.GetPromoCounter(ctx)
}
