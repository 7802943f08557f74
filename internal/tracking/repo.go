package tracking

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
)

// Repository is the append-only engagement log. Nothing here updates or
// deletes rows.
type Repository interface {
	CreateEvent(ctx context.Context, event *models.EmailEvent) error
	HasEvent(ctx context.Context, clientID uuid.UUID, eventType enums.EmailEventType) (bool, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.EmailEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an engagement log repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateEvent(ctx context.Context, event *models.EmailEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) HasEvent(ctx context.Context, clientID uuid.UUID, eventType enums.EmailEventType) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.EmailEvent{}).
		Where("client_id = ? AND type = ?", clientID, eventType).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.EmailEvent, error) {
	var rows []models.EmailEvent
	if err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
