package models

import (
	"time"

	"github.com/google/uuid"
)

// DripSequence is an ordered, delay-gated onboarding email series clients
// are enrolled in.
type DripSequence struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string     `gorm:"type:text;not null"`
	Active    bool       `gorm:"column:active;not null;default:true"`
	Steps     []DripStep `gorm:"foreignKey:SequenceID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// DripStep is a single email in a sequence. Position is 1-based and unique
// per sequence; steps are strictly ordered and never skipped.
type DripStep struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SequenceID uuid.UUID `gorm:"column:sequence_id;type:uuid;not null;uniqueIndex:idx_drip_steps_sequence_position"`
	Position   int       `gorm:"column:position;not null;uniqueIndex:idx_drip_steps_sequence_position"`
	DelayDays  int       `gorm:"column:delay_days;not null;default:0"`
	Subject    string    `gorm:"type:text;not null"`
	BodyHTML   string    `gorm:"column:body_html;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
