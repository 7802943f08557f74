package models

import (
	"time"

	"github.com/google/uuid"
)

// OnboardingProgress tracks one client's position in a drip sequence.
// Mutated only by the drip job; CurrentStep advances monotonically and only
// after a successful send.
type OnboardingProgress struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID        uuid.UUID  `gorm:"column:client_id;type:uuid;not null;uniqueIndex:idx_onboarding_client_sequence"`
	SequenceID      uuid.UUID  `gorm:"column:sequence_id;type:uuid;not null;uniqueIndex:idx_onboarding_client_sequence"`
	CurrentStep     int        `gorm:"column:current_step;not null;default:0"`
	StartedAt       time.Time  `gorm:"column:started_at;not null"`
	LastEmailSentAt *time.Time `gorm:"column:last_email_sent_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	Paused          bool       `gorm:"column:paused;not null;default:false"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Due reports whether the next step's delay has elapsed at now. The clock
// starts at the later of the last send and enrollment.
func (p OnboardingProgress) Due(delayDays int, now time.Time) bool {
	anchor := p.StartedAt
	if p.LastEmailSentAt != nil && p.LastEmailSentAt.After(anchor) {
		anchor = *p.LastEmailSentAt
	}
	return now.Sub(anchor) >= time.Duration(delayDays)*24*time.Hour
}
