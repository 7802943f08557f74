package users

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/personapath/personapath-backend/internal/billing"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the user service.
type ServiceParams struct {
	Repo              Repository
	BillingRepo       billing.Repository
	TransactionRunner txRunner
}

// Service creates accounts and keeps the free-tier provisioning invariant:
// every user owns exactly one subscription row from the moment they exist.
type Service struct {
	repo        Repository
	billingRepo billing.Repository
	txRunner    txRunner
}

// NewService wires the user service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:        params.Repo,
		billingRepo: params.BillingRepo,
		txRunner:    params.TransactionRunner,
	}, nil
}

// CreateParams describes a new account.
type CreateParams struct {
	Email     string
	FirstName string
	LastName  string
}

// Create inserts the user and auto-provisions a free-tier subscription in
// the same transaction.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	user := &models.User{
		Email:     email,
		FirstName: strings.TrimSpace(params.FirstName),
		LastName:  strings.TrimSpace(params.LastName),
	}

	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		sub := &models.Subscription{
			UserID: user.ID,
			Tier:   enums.PricingTierFree,
			Status: enums.SubscriptionStatusActive,
		}
		return s.billingRepo.WithTx(tx).CreateSubscription(ctx, sub)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	return user, nil
}
