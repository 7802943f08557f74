package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account owner (a coach running assessments).
type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"type:text;not null;uniqueIndex"`
	FirstName        string     `gorm:"column:first_name;not null"`
	LastName         string     `gorm:"column:last_name;not null"`
	StripeCustomerID *string    `gorm:"column:stripe_customer_id;uniqueIndex"`
	SystemRole       *string    `gorm:"column:system_role"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
