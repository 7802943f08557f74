package db

import (
	"context"
	"fmt"

	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/logger"
)

// MaybeAutoMigrate syncs the schema automatically when running in dev mode
// with the feature flag enabled. Production schemas are managed out of band.
func MaybeAutoMigrate(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "running dev auto-migration")

	if err := client.DB().WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Subscription{},
		&models.PromoCounter{},
		&models.EmailEvent{},
		&models.DripSequence{},
		&models.DripStep{},
		&models.OnboardingProgress{},
		&models.PriceTransitionNotice{},
	); err != nil {
		return fmt.Errorf("auto-migrating schema: %w", err)
	}

	return nil
}
