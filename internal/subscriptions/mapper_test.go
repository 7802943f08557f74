package subscriptions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
)

func TestBuildSubscriptionFromStripe(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	stripeSub := &stripe.Subscription{
		ID:     "sub_build",
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				CurrentPeriodStart: start.Unix(),
				CurrentPeriodEnd:   end.Unix(),
			}},
		},
		CancelAtPeriodEnd: true,
	}

	built, err := BuildSubscriptionFromStripe(stripeSub, userID, enums.PricingTierEarlyBird, 2900, "cus_build")
	if err != nil {
		t.Fatalf("build subscription: %v", err)
	}
	if built.UserID != userID {
		t.Fatalf("unexpected user id %s", built.UserID)
	}
	if built.StripeSubscriptionID == nil || *built.StripeSubscriptionID != "sub_build" {
		t.Fatalf("expected subscription id recorded")
	}
	if built.StripeCustomerID == nil || *built.StripeCustomerID != "cus_build" {
		t.Fatalf("expected customer id recorded")
	}
	if built.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", built.Status)
	}
	if built.CurrentPeriodStart == nil || !built.CurrentPeriodStart.Equal(start) {
		t.Fatalf("unexpected period start %v", built.CurrentPeriodStart)
	}
	if built.CurrentPeriodEnd == nil || !built.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("unexpected period end %v", built.CurrentPeriodEnd)
	}
	if !built.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end carried over")
	}
}

func TestBuildSubscriptionFromStripeRejectsInvalidTier(t *testing.T) {
	if _, err := BuildSubscriptionFromStripe(&stripe.Subscription{ID: "sub_x"}, uuid.New(), enums.PricingTier("gold"), 0, ""); err == nil {
		t.Fatalf("expected invalid tier error")
	}
}

func TestApplyStripeUpdateOverwritesState(t *testing.T) {
	oldStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	target := &models.Subscription{
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: &oldStart,
	}
	newStart := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	newEnd := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	stripeSub := &stripe.Subscription{
		ID:       "sub_apply",
		Status:   stripe.SubscriptionStatusUnpaid,
		Customer: &stripe.Customer{ID: "cus_apply"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				CurrentPeriodStart: newStart.Unix(),
				CurrentPeriodEnd:   newEnd.Unix(),
			}},
		},
	}

	if err := ApplyStripeUpdate(target, stripeSub); err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if target.Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("expected unpaid mapped to past_due, got %s", target.Status)
	}
	if target.CurrentPeriodStart == nil || !target.CurrentPeriodStart.Equal(newStart) {
		t.Fatalf("expected period start replaced")
	}
	if target.StripeCustomerID == nil || *target.StripeCustomerID != "cus_apply" {
		t.Fatalf("expected customer id replaced")
	}
}

func TestMapStripeStatus(t *testing.T) {
	cases := []struct {
		in   stripe.SubscriptionStatus
		want enums.SubscriptionStatus
	}{
		{stripe.SubscriptionStatusActive, enums.SubscriptionStatusActive},
		{stripe.SubscriptionStatusTrialing, enums.SubscriptionStatusActive},
		{stripe.SubscriptionStatusPastDue, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusUnpaid, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusIncomplete, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusCanceled, enums.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusIncompleteExpired, enums.SubscriptionStatusCanceled},
	}
	for _, tc := range cases {
		if got := mapStripeStatus(tc.in); got != tc.want {
			t.Fatalf("status %s: expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestUserIDFromMetadata(t *testing.T) {
	userID := uuid.New()
	got, err := UserIDFromMetadata(map[string]string{MetaUserID: userID.String()})
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if got != userID {
		t.Fatalf("expected %s, got %s", userID, got)
	}

	if _, err := UserIDFromMetadata(nil); err == nil {
		t.Fatalf("expected error for nil metadata")
	}
	if _, err := UserIDFromMetadata(map[string]string{MetaUserID: "not-a-uuid"}); err == nil {
		t.Fatalf("expected error for malformed id")
	}
	if _, err := UserIDFromMetadata(map[string]string{}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestTierFromMetadata(t *testing.T) {
	tier, err := TierFromMetadata(map[string]string{MetaTier: "early_bird"})
	if err != nil {
		t.Fatalf("parse tier: %v", err)
	}
	if tier != enums.PricingTierEarlyBird {
		t.Fatalf("expected early_bird, got %s", tier)
	}
	if _, err := TierFromMetadata(map[string]string{MetaTier: "platinum"}); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}
