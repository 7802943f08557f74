package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/personapath/personapath-backend/internal/billing"
	"github.com/personapath/personapath-backend/internal/subscriptions"
	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/email"
	"github.com/personapath/personapath-backend/pkg/enums"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

const (
	paymentFailedSubject = "Your PersonaPath payment didn't go through"
	paymentFailedBody    = "<p>Hi {{first_name}},</p>" +
		"<p>We couldn't process your latest payment. Please update your payment " +
		"method to keep your subscription active.</p>"
)

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	BillingRepo       billing.Repository
	UserRepo          userReader
	StripeClient      subscriptionFetcher
	TransactionRunner txRunner
	Email             email.Sender
	Billing           config.BillingConfig
	Logger            *logger.Logger
}

// Service reconciles delivered payment processor events into local state.
// Handlers write absolute values only, so redelivered or reordered events
// converge on the processor's view.
type Service struct {
	billingRepo billing.Repository
	userRepo    userReader
	stripe      subscriptionFetcher
	txRunner    txRunner
	email       email.Sender
	cfg         config.BillingConfig
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		userRepo:    params.UserRepo,
		stripe:      params.StripeClient,
		txRunner:    params.TransactionRunner,
		email:       params.Email,
		cfg:         params.Billing,
		logg:        params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub)
	case stripe.EventTypeInvoicePaymentSucceeded:
		return s.syncFromInvoice(ctx, event)
	case stripe.EventTypeInvoicePaymentFailed:
		if err := s.syncFromInvoice(ctx, event); err != nil {
			return err
		}
		s.sendPaymentFailedNotice(ctx, event)
		return nil
	default:
		s.logg.Info(ctx, fmt.Sprintf("ignoring stripe event type %s", event.Type))
		return nil
	}
}

// handleCheckoutCompleted routes a completed session by the kind recorded in
// its metadata: new subscriptions claim a promotional slot, add-on purchases
// bump the pack counter.
func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Metadata[subscriptions.MetaKind] == subscriptions.KindAddonPack {
		return s.handleAddonPurchase(ctx, session)
	}

	userID, err := subscriptions.UserIDFromMetadata(session.Metadata)
	if err != nil {
		return err
	}
	tier, err := subscriptions.TierFromMetadata(session.Metadata)
	if err != nil {
		return err
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session has no subscription")
	}

	stripeSub, err := s.stripe.GetSubscription(ctx, session.Subscription.ID, &stripe.SubscriptionParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		stored, err := repo.FindSubscriptionByUser(ctx, userID)
		if err != nil {
			return err
		}

		// The slot is claimed only when the row does not yet reference this
		// processor subscription, so a redelivered completion past the redis
		// guard cannot consume a second slot.
		alreadyLinked := stored != nil && stored.StripeSubscriptionID != nil &&
			*stored.StripeSubscriptionID == stripeSub.ID
		if tier == enums.PricingTierEarlyBird && !alreadyLinked {
			claimed, err := repo.ClaimPromoSlot(ctx)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim promo slot")
			}
			if !claimed {
				// The slot ran out between checkout start and completion.
				// The processor already charged the promotional price, so
				// the stored tier stays what the user paid for.
				logCtx := s.logg.WithUserID(ctx, userID.String())
				s.logg.Warn(logCtx, "promo capacity exhausted after tier assignment")
			}
		}

		priceCents := s.priceCentsForTier(tier)
		customerID := ""
		if session.Customer != nil {
			customerID = session.Customer.ID
		}

		if stored == nil {
			built, err := subscriptions.BuildSubscriptionFromStripe(stripeSub, userID, tier, priceCents, customerID)
			if err != nil {
				return err
			}
			return repo.CreateSubscription(ctx, built)
		}

		if err := subscriptions.ApplyStripeUpdate(stored, stripeSub); err != nil {
			return err
		}
		stored.Tier = tier
		stored.PriceCents = priceCents
		if customerID != "" {
			stored.StripeCustomerID = &customerID
		}
		return repo.UpdateSubscription(ctx, stored)
	})
}

func (s *Service) handleAddonPurchase(ctx context.Context, session *stripe.CheckoutSession) error {
	userID, err := subscriptions.UserIDFromMetadata(session.Metadata)
	if err != nil {
		return err
	}

	quantity := 1
	if raw := session.Metadata[subscriptions.MetaQuantity]; raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid addon pack quantity")
		}
		quantity = parsed
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := repo.FindSubscriptionByUser(ctx, userID)
		if err != nil {
			return err
		}
		if stored == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found for addon purchase")
		}
		stored.AddonPacks += quantity
		return repo.UpdateSubscription(ctx, stored)
	})
}

// syncSubscription overwrites the stored row with the delivered state. A
// delivery for a subscription nobody tracks is logged and dropped; the
// checkout handler owns first writes.
func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription) error {
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		stored, err := repo.FindSubscriptionByStripeID(ctx, stripeSub.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			userID, metaErr := subscriptions.UserIDFromMetadata(stripeSub.Metadata)
			if metaErr == nil {
				stored, err = repo.FindSubscriptionByUser(ctx, userID)
				if err != nil {
					return err
				}
			}
		}
		if stored == nil {
			s.logg.Warn(ctx, fmt.Sprintf("dropping event for untracked subscription %s", stripeSub.ID))
			return nil
		}

		if err := subscriptions.ApplyStripeUpdate(stored, stripeSub); err != nil {
			return err
		}
		return repo.UpdateSubscription(ctx, stored)
	})
}

func (s *Service) syncFromInvoice(ctx context.Context, event *stripe.Event) error {
	subscriptionID := invoiceSubscriptionID(event)
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing from invoice")
	}
	stripeSub, err := s.stripe.GetSubscription(ctx, subscriptionID, &stripe.SubscriptionParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}
	return s.syncSubscription(ctx, stripeSub)
}

// sendPaymentFailedNotice is best effort. The status write already happened;
// a provider outage here must not make the delivery retry.
func (s *Service) sendPaymentFailedNotice(ctx context.Context, event *stripe.Event) {
	if s.email == nil {
		return
	}

	subscriptionID := invoiceSubscriptionID(event)
	stored, err := s.billingRepo.FindSubscriptionByStripeID(ctx, subscriptionID)
	if err != nil || stored == nil {
		s.logg.Warn(ctx, fmt.Sprintf("skipping dunning notice for subscription %s", subscriptionID))
		return
	}

	user, err := s.userRepo.FindByID(ctx, stored.UserID)
	if err != nil || user == nil {
		s.logg.Warn(ctx, "skipping dunning notice, user not found")
		return
	}

	body := email.Render(paymentFailedBody, map[string]string{
		"first_name": user.FirstName,
	})
	if err := s.email.Send(ctx, "", user.Email, paymentFailedSubject, body); err != nil {
		logCtx := s.logg.WithUserID(ctx, user.ID.String())
		s.logg.Error(logCtx, "dunning notice send failed", err)
	}
}

func (s *Service) priceCentsForTier(tier enums.PricingTier) int64 {
	switch tier {
	case enums.PricingTierEarlyBird:
		return s.cfg.EarlyBirdPriceCents
	case enums.PricingTierRegular:
		return s.cfg.RegularPriceCents
	default:
		return 0
	}
}

func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("parent", "subscription_details", "subscription")
}
