package subscriptions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/personapath/personapath-backend/internal/billing"
	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	BillingRepo billing.Repository
	UserRepo    userStore
	Stripe      ProcessorClient
	Billing     config.BillingConfig
	Logger      *logger.Logger
}

// Service assigns pricing tiers at checkout time and talks to the payment
// processor. It persists nothing locally except the processor customer id;
// the session and schedule live at the processor until the reconciler
// observes them.
type Service struct {
	billingRepo billing.Repository
	userRepo    userStore
	stripe      ProcessorClient
	cfg         config.BillingConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		userRepo:    params.UserRepo,
		stripe:      params.Stripe,
		cfg:         params.Billing,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

// CheckoutIntent is what the caller needs to continue checkout in the
// browser.
type CheckoutIntent struct {
	SessionID string            `json:"session_id"`
	URL       string            `json:"url"`
	Tier      enums.PricingTier `json:"tier"`
}

// AssignTier reads the promotional counter and derives the tier for the next
// checkout. Assignment is advisory; the counter is claimed atomically when
// the checkout actually completes.
func (s *Service) AssignTier(ctx context.Context) (enums.PricingTier, error) {
	counter, err := s.billingRepo.GetPromoCounter(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read promo counter")
	}
	if counter.Exhausted() {
		return enums.PricingTierRegular, nil
	}
	return enums.PricingTierEarlyBird, nil
}

// StartCheckout derives the tier, creates the processor checkout session and,
// for the promotional tier, the two-phase billing schedule.
func (s *Service) StartCheckout(ctx context.Context, userID uuid.UUID, successURL, cancelURL string) (*CheckoutIntent, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	tier, err := s.AssignTier(ctx)
	if err != nil {
		return nil, err
	}

	priceID := s.priceIDForTier(tier)
	if priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no price configured for tier %s", tier))
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetaUserID: userID.String(),
				MetaTier:   string(tier),
			},
		},
	}
	params.AddMetadata(MetaUserID, userID.String())
	params.AddMetadata(MetaTier, string(tier))
	params.AddMetadata(MetaKind, KindSubscription)

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	if tier == enums.PricingTierEarlyBird {
		if err := s.createPromoSchedule(ctx, userID, customerID); err != nil {
			return nil, err
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"tier":    string(tier),
	})
	s.logg.Info(logCtx, "checkout session created")

	return &CheckoutIntent{
		SessionID: session.ID,
		URL:       session.URL,
		Tier:      tier,
	}, nil
}

// StartAddonCheckout creates a one-time payment session for extra client
// capacity packs.
func (s *Service) StartAddonCheckout(ctx context.Context, userID uuid.UUID, quantity int64, successURL, cancelURL string) (*CheckoutIntent, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if s.cfg.AddonPackPriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no addon pack price configured")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.AddonPackPriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
	}
	params.AddMetadata(MetaUserID, userID.String())
	params.AddMetadata(MetaKind, KindAddonPack)
	params.AddMetadata(MetaQuantity, strconv.FormatInt(quantity, 10))

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create addon checkout session")
	}

	return &CheckoutIntent{SessionID: session.ID, URL: session.URL}, nil
}

// EnsureFreeSubscription guarantees the user has a subscription row,
// creating the free-tier one if nothing exists yet. Safe to call repeatedly.
func (s *Service) EnsureFreeSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	existing, err := s.billingRepo.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if existing != nil {
		return existing, nil
	}

	sub := &models.Subscription{
		UserID: userID,
		Tier:   enums.PricingTierFree,
		Status: enums.SubscriptionStatusActive,
	}
	if err := s.billingRepo.CreateSubscription(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create free subscription")
	}
	return sub, nil
}

// createPromoSchedule books the future price transition: the promotional
// price for the promo window, then the regular price with no end date.
func (s *Service) createPromoSchedule(ctx context.Context, userID uuid.UUID, customerID string) error {
	now := s.now().UTC()
	phaseEnd := now.Add(time.Duration(s.cfg.PromoPhaseDays) * 24 * time.Hour)

	params := &stripe.SubscriptionScheduleParams{
		Customer:    stripe.String(customerID),
		StartDate:   stripe.Int64(now.Unix()),
		EndBehavior: stripe.String(string(stripe.SubscriptionScheduleEndBehaviorRelease)),
		Phases: []*stripe.SubscriptionSchedulePhaseParams{
			{
				Items: []*stripe.SubscriptionSchedulePhaseItemParams{
					{
						Price:    stripe.String(s.cfg.EarlyBirdPriceID),
						Quantity: stripe.Int64(1),
					},
				},
				EndDate: stripe.Int64(phaseEnd.Unix()),
			},
			{
				Items: []*stripe.SubscriptionSchedulePhaseItemParams{
					{
						Price:    stripe.String(s.cfg.RegularPriceID),
						Quantity: stripe.Int64(1),
					},
				},
			},
		},
	}
	params.AddMetadata(MetaUserID, userID.String())
	params.AddMetadata(MetaTier, string(enums.PricingTierEarlyBird))

	if _, err := s.stripe.CreateSchedule(ctx, params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription schedule")
	}
	return nil
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.FirstName + " " + user.LastName),
	}
	params.AddMetadata(MetaUserID, user.ID.String())

	created, err := s.stripe.CreateCustomer(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}
	if err := s.userRepo.SetStripeCustomerID(ctx, user.ID, created.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stripe customer id")
	}
	return created.ID, nil
}

func (s *Service) priceIDForTier(tier enums.PricingTier) string {
	switch tier {
	case enums.PricingTierEarlyBird:
		return s.cfg.EarlyBirdPriceID
	case enums.PricingTierRegular:
		return s.cfg.RegularPriceID
	default:
		return ""
	}
}
