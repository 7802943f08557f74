package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
)

// Repository handles billing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	ListActiveExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Subscription, error)
	GetPromoCounter(ctx context.Context) (*models.PromoCounter, error)
	EnsurePromoCounter(ctx context.Context, limit int) error
	ClaimPromoSlot(ctx context.Context) (bool, error)
	TransitionNoticeExists(ctx context.Context, userID uuid.UUID, scheduleID string) (bool, error)
	CreateTransitionNotice(ctx context.Context, notice *models.PriceTransitionNotice) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListActiveExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.SubscriptionStatusActive).
		Where("current_period_end >= ? AND current_period_end < ?", from, to).
		Order("current_period_end ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) GetPromoCounter(ctx context.Context) (*models.PromoCounter, error) {
	var counter models.PromoCounter
	if err := r.db.WithContext(ctx).
		Where("id = ?", models.PromoCounterID).
		First(&counter).Error; err != nil {
		return nil, err
	}
	return &counter, nil
}

// EnsurePromoCounter seeds the singleton counter row at bootstrap and keeps
// its limit in sync with configuration. The claimed count is never touched.
func (r *repository) EnsurePromoCounter(ctx context.Context, limit int) error {
	if limit < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo limit must be positive")
	}

	var counter models.PromoCounter
	err := r.db.WithContext(ctx).
		Where("id = ?", models.PromoCounterID).
		First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(&models.PromoCounter{
			ID:    models.PromoCounterID,
			Limit: limit,
		}).Error
	}
	if err != nil {
		return err
	}
	if counter.Limit == limit {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.PromoCounter{}).
		Where("id = ?", models.PromoCounterID).
		UpdateColumn("promo_limit", limit).Error
}

// ClaimPromoSlot increments the promotional counter iff it is still under
// its limit. The single conditional UPDATE is the serialization point: two
// concurrent claims cannot both pass the limit check.
func (r *repository) ClaimPromoSlot(ctx context.Context) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PromoCounter{}).
		Where("id = ? AND count < promo_limit", models.PromoCounterID).
		UpdateColumn("count", gorm.Expr("count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) TransitionNoticeExists(ctx context.Context, userID uuid.UUID, scheduleID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PriceTransitionNotice{}).
		Where("user_id = ? AND stripe_schedule_id = ?", userID, scheduleID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateTransitionNotice(ctx context.Context, notice *models.PriceTransitionNotice) error {
	return r.db.WithContext(ctx).Create(notice).Error
}
