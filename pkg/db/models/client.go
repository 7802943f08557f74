package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Client is an assessment recipient owned by a user. The id doubles as the
// tracking key embedded in outbound email, so it is never sequential.
type Client struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	Email               string         `gorm:"type:text;not null"`
	FirstName           string         `gorm:"column:first_name;not null"`
	LastName            string         `gorm:"column:last_name;not null"`
	Tags                pq.StringArray `gorm:"column:tags;type:text[];default:ARRAY[]::text[]"`
	AssessmentStartedAt *time.Time     `gorm:"column:assessment_started_at"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName joins the client's names for template rendering.
func (c Client) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
