package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/personapath/personapath-backend/pkg/enums"
)

// EmailEvent is one row of the append-only engagement log. Rows are never
// updated or deleted; every eligibility decision downstream is recomputed
// from the full history.
type EmailEvent struct {
	ID             uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID       uuid.UUID            `gorm:"column:client_id;type:uuid;not null;index"`
	Type           enums.EmailEventType `gorm:"column:type;type:email_event_type;not null"`
	IsReminder     bool                 `gorm:"column:is_reminder;not null;default:false"`
	ReminderNumber *int                 `gorm:"column:reminder_number"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime;index"`
}
