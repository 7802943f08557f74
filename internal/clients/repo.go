package clients

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/personapath/personapath-backend/pkg/db/models"
)

// Repository handles client persistence for the messaging jobs.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	ListWithAssessmentStarted(ctx context.Context) ([]models.Client, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a client repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&client).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

func (r *repository) ListWithAssessmentStarted(ctx context.Context) ([]models.Client, error) {
	var rows []models.Client
	if err := r.db.WithContext(ctx).
		Where("assessment_started_at IS NOT NULL").
		Order("assessment_started_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
