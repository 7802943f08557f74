package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/personapath/personapath-backend/internal/billing"
	"github.com/personapath/personapath-backend/internal/clients"
	"github.com/personapath/personapath-backend/internal/cron"
	"github.com/personapath/personapath-backend/internal/drip"
	"github.com/personapath/personapath-backend/internal/subscriptions"
	"github.com/personapath/personapath-backend/internal/tracking"
	"github.com/personapath/personapath-backend/internal/users"
	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db"
	"github.com/personapath/personapath-backend/pkg/email"
	"github.com/personapath/personapath-backend/pkg/logger"
	"github.com/personapath/personapath-backend/pkg/metrics"
	"github.com/personapath/personapath-backend/pkg/redis"
	pkgstripe "github.com/personapath/personapath-backend/pkg/stripe"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := db.MaybeAutoMigrate(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	var sender email.Sender
	if cfg.Sendgrid.APIKey == "" {
		if cfg.App.IsProd() {
			logg.Error(context.Background(), "sendgrid api key missing in production", nil)
			os.Exit(1)
		}
		logg.Warn(context.Background(), "no sendgrid key configured, using log sender")
		sender = &email.LogSender{Logger: logg}
	} else {
		sender, err = email.NewSendgridSender(cfg.Sendgrid)
		if err != nil {
			logg.Error(context.Background(), "failed to create email sender", err)
			os.Exit(1)
		}
	}

	billingRepo := billing.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	clientRepo := clients.NewRepository(dbClient.DB())
	trackingRepo := tracking.NewRepository(dbClient.DB())
	dripRepo := drip.NewRepository(dbClient.DB())

	if err := billingRepo.EnsurePromoCounter(context.Background(), cfg.Billing.PromoLimit); err != nil {
		logg.Error(context.Background(), "failed to seed promo counter", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewExpiryReminderJob(cron.ExpiryReminderJobParams{
		Logger:      logg,
		BillingRepo: billingRepo,
		UserRepo:    userRepo,
		Email:       sender,
		Billing:     cfg.Billing,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry reminder job", err)
		os.Exit(1)
	}

	priceJob, err := cron.NewPriceTransitionJob(cron.PriceTransitionJobParams{
		Logger:      logg,
		Stripe:      subscriptions.NewProcessorClient(stripeClient),
		BillingRepo: billingRepo,
		UserRepo:    userRepo,
		Email:       sender,
		Billing:     cfg.Billing,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create price transition job", err)
		os.Exit(1)
	}

	dripJob, err := cron.NewDripJob(cron.DripJobParams{
		Logger:     logg,
		DripRepo:   dripRepo,
		ClientRepo: clientRepo,
		Email:      sender,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create drip job", err)
		os.Exit(1)
	}

	reminderJob, err := cron.NewAssessmentReminderJob(cron.AssessmentReminderJobParams{
		Logger:       logg,
		ClientRepo:   clientRepo,
		TrackingRepo: trackingRepo,
		Email:        sender,
		Messaging:    cfg.Messaging,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assessment reminder job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, priceJob, dripJob, reminderJob)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
