package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceTransitionNotice marks that the 30-day-ahead price-increase notice
// was sent for a (user, schedule) pair. Write-once; existence of the row is
// the sole de-duplication mechanism.
type PriceTransitionNotice struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_price_notice_user_schedule"`
	StripeScheduleID string    `gorm:"column:stripe_schedule_id;not null;uniqueIndex:idx_price_notice_user_schedule"`
	SentAt           time.Time `gorm:"column:sent_at;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}
