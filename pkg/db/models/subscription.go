package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/personapath/personapath-backend/pkg/enums"
)

// Subscription persists processor subscription state per user. At most one
// row exists per user; status and period fields are authoritative only as
// last written by the webhook reconciler or a verification pull.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;uniqueIndex"`
	Tier                 enums.PricingTier        `gorm:"column:tier;type:pricing_tier;not null;default:'free'"`
	PriceCents           int64                    `gorm:"column:price_cents;not null;default:0"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end;index"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	AddonPacks           int                      `gorm:"column:addon_packs;not null;default:0"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
