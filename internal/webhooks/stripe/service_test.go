package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/personapath/personapath-backend/internal/billing"
	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
	"github.com/personapath/personapath-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		EarlyBirdPriceCents: 2900,
		RegularPriceCents:   4900,
	}
}

func newTestService(t *testing.T, billingRepo billing.Repository, userRepo userReader, stripeClient subscriptionFetcher, sender *stubEmailSender) *Service {
	t.Helper()
	params := ServiceParams{
		BillingRepo:       billingRepo,
		UserRepo:          userRepo,
		StripeClient:      stripeClient,
		TransactionRunner: &stubTxRunner{},
		Billing:           testBillingConfig(),
		Logger:            testLogger(),
	}
	if sender != nil {
		params.Email = sender
	}
	service, err := NewService(params)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func checkoutCompletedEvent(t *testing.T, session *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func stripeSubscription(id string, status stripe.SubscriptionStatus) *stripe.Subscription {
	return &stripe.Subscription{
		ID:     id,
		Status: status,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				CurrentPeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
				CurrentPeriodEnd:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Unix(),
			}},
		},
	}
}

func TestService_CheckoutCompletedCreatesEarlyBirdSubscription(t *testing.T) {
	userID := uuid.New()
	billingRepo := &stubBillingRepo{counter: &models.PromoCounter{ID: models.PromoCounterID, Count: 0, Limit: 30}}
	stripeClient := &stubStripeClient{getResp: stripeSubscription("sub_new", stripe.SubscriptionStatusActive)}
	service := newTestService(t, billingRepo, &stubUserRepo{}, stripeClient, nil)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Metadata: map[string]string{
			"user_id": userID.String(),
			"tier":    "early_bird",
			"kind":    "subscription",
		},
		Subscription: &stripe.Subscription{ID: "sub_new"},
		Customer:     &stripe.Customer{ID: "cus_new"},
	})

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.created) != 1 {
		t.Fatalf("expected subscription created, got %d", len(billingRepo.created))
	}
	created := billingRepo.created[0]
	if created.Tier != enums.PricingTierEarlyBird {
		t.Fatalf("expected early_bird tier, got %s", created.Tier)
	}
	if created.PriceCents != 2900 {
		t.Fatalf("expected price 2900, got %d", created.PriceCents)
	}
	if created.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", created.Status)
	}
	if billingRepo.counter.Count != 1 {
		t.Fatalf("expected promo slot claimed, count %d", billingRepo.counter.Count)
	}
}

func TestService_CheckoutCompletedKeepsTierWhenCounterExhausted(t *testing.T) {
	userID := uuid.New()
	billingRepo := &stubBillingRepo{counter: &models.PromoCounter{ID: models.PromoCounterID, Count: 30, Limit: 30}}
	stripeClient := &stubStripeClient{getResp: stripeSubscription("sub_late", stripe.SubscriptionStatusActive)}
	service := newTestService(t, billingRepo, &stubUserRepo{}, stripeClient, nil)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Metadata: map[string]string{
			"user_id": userID.String(),
			"tier":    "early_bird",
			"kind":    "subscription",
		},
		Subscription: &stripe.Subscription{ID: "sub_late"},
	})

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.created) != 1 {
		t.Fatalf("expected subscription created")
	}
	if billingRepo.created[0].Tier != enums.PricingTierEarlyBird {
		t.Fatalf("expected the charged tier kept, got %s", billingRepo.created[0].Tier)
	}
	if billingRepo.counter.Count != 30 {
		t.Fatalf("counter must not exceed its limit, got %d", billingRepo.counter.Count)
	}
}

func TestService_CheckoutCompletedUpgradesFreeSubscription(t *testing.T) {
	userID := uuid.New()
	existing := &models.Subscription{
		ID:     uuid.New(),
		UserID: userID,
		Tier:   enums.PricingTierFree,
		Status: enums.SubscriptionStatusActive,
	}
	billingRepo := &stubBillingRepo{
		existing: existing,
		counter:  &models.PromoCounter{ID: models.PromoCounterID, Count: 30, Limit: 30},
	}
	stripeClient := &stubStripeClient{getResp: stripeSubscription("sub_up", stripe.SubscriptionStatusActive)}
	service := newTestService(t, billingRepo, &stubUserRepo{}, stripeClient, nil)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Metadata: map[string]string{
			"user_id": userID.String(),
			"tier":    "regular",
			"kind":    "subscription",
		},
		Subscription: &stripe.Subscription{ID: "sub_up"},
		Customer:     &stripe.Customer{ID: "cus_up"},
	})

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.created) != 0 {
		t.Fatalf("expected no new row for existing subscription")
	}
	if len(billingRepo.updated) != 1 {
		t.Fatalf("expected subscription updated")
	}
	updated := billingRepo.updated[0]
	if updated.Tier != enums.PricingTierRegular {
		t.Fatalf("expected regular tier, got %s", updated.Tier)
	}
	if updated.PriceCents != 4900 {
		t.Fatalf("expected price 4900, got %d", updated.PriceCents)
	}
	if updated.StripeSubscriptionID == nil || *updated.StripeSubscriptionID != "sub_up" {
		t.Fatalf("expected stripe subscription id recorded")
	}
}

func TestService_CheckoutCompletedReplayClaimsOneSlot(t *testing.T) {
	userID := uuid.New()
	billingRepo := &stubBillingRepo{counter: &models.PromoCounter{ID: models.PromoCounterID, Count: 0, Limit: 30}}
	stripeClient := &stubStripeClient{getResp: stripeSubscription("sub_redelivered", stripe.SubscriptionStatusActive)}
	service := newTestService(t, billingRepo, &stubUserRepo{}, stripeClient, nil)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Metadata: map[string]string{
			"user_id": userID.String(),
			"tier":    "early_bird",
			"kind":    "subscription",
		},
		Subscription: &stripe.Subscription{ID: "sub_redelivered"},
		Customer:     &stripe.Customer{ID: "cus_redelivered"},
	})

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if len(billingRepo.created) != 1 {
		t.Fatalf("expected subscription created, got %d", len(billingRepo.created))
	}
	billingRepo.existing = billingRepo.created[0]

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if billingRepo.counter.Count != 1 {
		t.Fatalf("redelivery must not claim a second promo slot, count %d", billingRepo.counter.Count)
	}
	if len(billingRepo.updated) != 1 {
		t.Fatalf("expected the redelivery to update in place, got %d updates", len(billingRepo.updated))
	}
}

func TestService_CheckoutCompletedEarlyBirdUpgradeClaimsSlot(t *testing.T) {
	userID := uuid.New()
	existing := &models.Subscription{
		ID:     uuid.New(),
		UserID: userID,
		Tier:   enums.PricingTierFree,
		Status: enums.SubscriptionStatusActive,
	}
	billingRepo := &stubBillingRepo{
		existing: existing,
		counter:  &models.PromoCounter{ID: models.PromoCounterID, Count: 5, Limit: 30},
	}
	stripeClient := &stubStripeClient{getResp: stripeSubscription("sub_promo_up", stripe.SubscriptionStatusActive)}
	service := newTestService(t, billingRepo, &stubUserRepo{}, stripeClient, nil)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Metadata: map[string]string{
			"user_id": userID.String(),
			"tier":    "early_bird",
			"kind":    "subscription",
		},
		Subscription: &stripe.Subscription{ID: "sub_promo_up"},
	})

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.updated) != 1 {
		t.Fatalf("expected free row upgraded in place")
	}
	if billingRepo.updated[0].Tier != enums.PricingTierEarlyBird {
		t.Fatalf("expected early_bird tier, got %s", billingRepo.updated[0].Tier)
	}
	if billingRepo.counter.Count != 6 {
		t.Fatalf("expected the upgrade to claim one slot, count %d", billingRepo.counter.Count)
	}
}

func TestService_CheckoutCompletedAddonPackIncrementsCount(t *testing.T) {
	userID := uuid.New()
	existing := &models.Subscription{
		ID:         uuid.New(),
		UserID:     userID,
		Tier:       enums.PricingTierRegular,
		Status:     enums.SubscriptionStatusActive,
		AddonPacks: 1,
	}
	billingRepo := &stubBillingRepo{existing: existing}
	service := newTestService(t, billingRepo, &stubUserRepo{}, &stubStripeClient{}, nil)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Metadata: map[string]string{
			"user_id":  userID.String(),
			"kind":     "addon_pack",
			"quantity": "3",
		},
	})

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.updated) != 1 {
		t.Fatalf("expected subscription updated")
	}
	if billingRepo.updated[0].AddonPacks != 4 {
		t.Fatalf("expected 4 addon packs, got %d", billingRepo.updated[0].AddonPacks)
	}
}

func TestService_SubscriptionDeletedMarksCanceled(t *testing.T) {
	subID := "sub_gone"
	existing := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		Tier:                 enums.PricingTierRegular,
		Status:               enums.SubscriptionStatusActive,
		StripeSubscriptionID: &subID,
	}
	billingRepo := &stubBillingRepo{existing: existing}
	service := newTestService(t, billingRepo, &stubUserRepo{}, &stubStripeClient{}, nil)

	stripeSub := stripeSubscription(subID, stripe.SubscriptionStatusCanceled)
	raw, _ := json.Marshal(stripeSub)
	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionDeleted,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.updated) != 1 {
		t.Fatalf("expected subscription updated")
	}
	if billingRepo.updated[0].Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %s", billingRepo.updated[0].Status)
	}
}

func TestService_SubscriptionUpdateReplayConverges(t *testing.T) {
	subID := "sub_replay"
	existing := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		Status:               enums.SubscriptionStatusActive,
		StripeSubscriptionID: &subID,
	}
	billingRepo := &stubBillingRepo{existing: existing}
	service := newTestService(t, billingRepo, &stubUserRepo{}, &stubStripeClient{}, nil)

	stripeSub := stripeSubscription(subID, stripe.SubscriptionStatusPastDue)
	raw, _ := json.Marshal(stripeSub)
	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionUpdated,
		Data: &stripe.EventData{Raw: raw},
	}

	for i := 0; i < 2; i++ {
		if err := service.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("handle event %d: %v", i, err)
		}
	}
	if len(billingRepo.updated) != 2 {
		t.Fatalf("expected two writes, got %d", len(billingRepo.updated))
	}
	for _, row := range billingRepo.updated {
		if row.Status != enums.SubscriptionStatusPastDue {
			t.Fatalf("expected past_due after each delivery, got %s", row.Status)
		}
	}
}

func TestService_SubscriptionEventForUntrackedRowIsDropped(t *testing.T) {
	billingRepo := &stubBillingRepo{}
	service := newTestService(t, billingRepo, &stubUserRepo{}, &stubStripeClient{}, nil)

	stripeSub := stripeSubscription("sub_unknown", stripe.SubscriptionStatusActive)
	raw, _ := json.Marshal(stripeSub)
	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionUpdated,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.created) != 0 || len(billingRepo.updated) != 0 {
		t.Fatalf("expected no writes for untracked subscription")
	}
}

func TestService_InvoicePaymentFailedMarksPastDueAndNotifies(t *testing.T) {
	subID := "sub_dunning"
	userID := uuid.New()
	existing := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		Status:               enums.SubscriptionStatusActive,
		StripeSubscriptionID: &subID,
	}
	billingRepo := &stubBillingRepo{existing: existing}
	stripeClient := &stubStripeClient{getResp: stripeSubscription(subID, stripe.SubscriptionStatusPastDue)}
	sender := &stubEmailSender{}
	userRepo := &stubUserRepo{user: &models.User{ID: userID, Email: "coach@example.com", FirstName: "Dana"}}
	service := newTestService(t, billingRepo, userRepo, stripeClient, sender)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{Object: map[string]interface{}{"subscription": subID}},
	}

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.updated) != 1 {
		t.Fatalf("expected subscription updated")
	}
	if billingRepo.updated[0].Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due status, got %s", billingRepo.updated[0].Status)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one dunning notice, got %d", len(sender.sent))
	}
	if sender.sent[0].to != "coach@example.com" {
		t.Fatalf("unexpected recipient %s", sender.sent[0].to)
	}
}

func TestService_InvoicePaymentFailedNotifyFailureIsSwallowed(t *testing.T) {
	subID := "sub_outage"
	userID := uuid.New()
	existing := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		Status:               enums.SubscriptionStatusActive,
		StripeSubscriptionID: &subID,
	}
	billingRepo := &stubBillingRepo{existing: existing}
	stripeClient := &stubStripeClient{getResp: stripeSubscription(subID, stripe.SubscriptionStatusPastDue)}
	sender := &stubEmailSender{err: errors.New("provider down")}
	userRepo := &stubUserRepo{user: &models.User{ID: userID, Email: "coach@example.com"}}
	service := newTestService(t, billingRepo, userRepo, stripeClient, sender)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{Object: map[string]interface{}{"subscription": subID}},
	}

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("send failure must not fail the delivery: %v", err)
	}
	if billingRepo.updated[0].Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("expected the status write to stand")
	}
}

func TestService_IgnoresUnhandledEventType(t *testing.T) {
	billingRepo := &stubBillingRepo{}
	service := newTestService(t, billingRepo, &stubUserRepo{}, &stubStripeClient{}, nil)

	event := &stripe.Event{
		Type: stripe.EventType("charge.refunded"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(billingRepo.created) != 0 || len(billingRepo.updated) != 0 {
		t.Fatalf("expected no writes for unhandled event type")
	}
}

type stubBillingRepo struct {
	existing *models.Subscription
	counter  *models.PromoCounter
	created  []*models.Subscription
	updated  []*models.Subscription
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) billing.Repository {
	return s
}

func (s *stubBillingRepo) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	s.created = append(s.created, subscription)
	return nil
}

func (s *stubBillingRepo) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	s.updated = append(s.updated, subscription)
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if s.existing != nil && s.existing.UserID == userID {
		return s.existing, nil
	}
	return nil, nil
}

func (s *stubBillingRepo) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if s.existing != nil && s.existing.StripeSubscriptionID != nil && *s.existing.StripeSubscriptionID == stripeSubscriptionID {
		return s.existing, nil
	}
	return nil, nil
}

func (s *stubBillingRepo) ListActiveExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Subscription, error) {
	return nil, nil
}

func (s *stubBillingRepo) GetPromoCounter(ctx context.Context) (*models.PromoCounter, error) {
	return s.counter, nil
}

func (s *stubBillingRepo) EnsurePromoCounter(ctx context.Context, limit int) error {
	if s.counter == nil {
		s.counter = &models.PromoCounter{ID: models.PromoCounterID, Limit: limit}
	}
	return nil
}

func (s *stubBillingRepo) ClaimPromoSlot(ctx context.Context) (bool, error) {
	if s.counter == nil || s.counter.Count >= s.counter.Limit {
		return false, nil
	}
	s.counter.Count++
	return true, nil
}

func (s *stubBillingRepo) TransitionNoticeExists(ctx context.Context, userID uuid.UUID, scheduleID string) (bool, error) {
	return false, nil
}

func (s *stubBillingRepo) CreateTransitionNotice(ctx context.Context, notice *models.PriceTransitionNotice) error {
	return nil
}

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubStripeClient struct {
	getResp *stripe.Subscription
	getErr  error
}

func (s *stubStripeClient) GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.getResp, nil
}

type sentEmail struct {
	to      string
	subject string
	html    string
}

type stubEmailSender struct {
	sent []sentEmail
	err  error
}

func (s *stubEmailSender) Send(ctx context.Context, from, to, subject, html string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, html: html})
	return nil
}
