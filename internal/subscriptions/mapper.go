package subscriptions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
)

// Session metadata keys attached at checkout time. The webhook event carries
// only the session, so caller identity and the assigned tier ride along as
// metadata.
const (
	MetaUserID   = "user_id"
	MetaTier     = "tier"
	MetaKind     = "kind"
	MetaQuantity = "quantity"

	KindSubscription = "subscription"
	KindAddonPack    = "addon_pack"
)

// BuildSubscriptionFromStripe maps a Stripe subscription into the canonical
// model for a first insert.
func BuildSubscriptionFromStripe(stripeSub *stripe.Subscription, userID uuid.UUID, tier enums.PricingTier, priceCents int64, customerID string) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	if !tier.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pricing tier")
	}

	startTS, endTS := periodFromSubscription(stripeSub)
	subID := stripeSub.ID

	return &models.Subscription{
		UserID:               userID,
		StripeCustomerID:     trimmedPtr(customerID),
		StripeSubscriptionID: trimmedPtr(subID),
		Tier:                 tier,
		PriceCents:           priceCents,
		Status:               mapStripeStatus(stripeSub.Status),
		CurrentPeriodStart:   toTimePtr(startTS),
		CurrentPeriodEnd:     toTimePtr(endTS),
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
	}, nil
}

// ApplyStripeUpdate copies the delivered subscription state onto the stored
// row verbatim. Every delivery carries the processor's full current state,
// so last-write-wins keeps redelivery and reordering safe.
func ApplyStripeUpdate(target *models.Subscription, stripeSub *stripe.Subscription) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	target.StripeSubscriptionID = trimmedPtr(stripeSub.ID)
	target.Status = mapStripeStatus(stripeSub.Status)
	startTS, endTS := periodFromSubscription(stripeSub)
	target.CurrentPeriodStart = toTimePtr(startTS)
	target.CurrentPeriodEnd = toTimePtr(endTS)
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	if stripeSub.Customer != nil {
		target.StripeCustomerID = trimmedPtr(stripeSub.Customer.ID)
	}
	return nil
}

// UserIDFromMetadata extracts the user id attached to session or schedule
// metadata at checkout time.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "metadata is required")
	}
	raw, ok := metadata[MetaUserID]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
	}
	return id, nil
}

// TierFromMetadata extracts the pricing tier assigned at checkout time.
func TierFromMetadata(metadata map[string]string) (enums.PricingTier, error) {
	tier := enums.PricingTier(strings.TrimSpace(metadata[MetaTier]))
	if !tier.Valid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "tier missing from metadata")
	}
	return tier, nil
}

func mapStripeStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return enums.SubscriptionStatusPastDue
	default:
		return enums.SubscriptionStatusActive
	}
}

func periodFromSubscription(sub *stripe.Subscription) (int64, int64) {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return 0, 0
	}
	item := sub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func trimmedPtr(value string) *string {
	if s := strings.TrimSpace(value); s != "" {
		return &s
	}
	return nil
}
