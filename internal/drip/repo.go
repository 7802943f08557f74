package drip

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/personapath/personapath-backend/pkg/db/models"
)

// Repository exposes the sequence definitions and per-client cursors the
// onboarding job advances.
type Repository interface {
	ListActiveProgress(ctx context.Context) ([]models.OnboardingProgress, error)
	FindSequenceWithSteps(ctx context.Context, id uuid.UUID) (*models.DripSequence, error)
	UpdateProgress(ctx context.Context, progress *models.OnboardingProgress) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a drip repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListActiveProgress(ctx context.Context) ([]models.OnboardingProgress, error) {
	var rows []models.OnboardingProgress
	if err := r.db.WithContext(ctx).
		Where("paused = ? AND completed_at IS NULL", false).
		Order("started_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindSequenceWithSteps(ctx context.Context, id uuid.UUID) (*models.DripSequence, error) {
	var sequence models.DripSequence
	if err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&sequence).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sequence, nil
}

func (r *repository) UpdateProgress(ctx context.Context, progress *models.OnboardingProgress) error {
	return r.db.WithContext(ctx).Save(progress).Error
}
