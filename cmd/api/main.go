package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/personapath/personapath-backend/api/routes"
	"github.com/personapath/personapath-backend/internal/billing"
	"github.com/personapath/personapath-backend/internal/clients"
	"github.com/personapath/personapath-backend/internal/cron"
	"github.com/personapath/personapath-backend/internal/drip"
	"github.com/personapath/personapath-backend/internal/subscriptions"
	"github.com/personapath/personapath-backend/internal/tracking"
	"github.com/personapath/personapath-backend/internal/users"
	stripewebhook "github.com/personapath/personapath-backend/internal/webhooks/stripe"
	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db"
	"github.com/personapath/personapath-backend/pkg/email"
	"github.com/personapath/personapath-backend/pkg/logger"
	"github.com/personapath/personapath-backend/pkg/redis"
	pkgstripe "github.com/personapath/personapath-backend/pkg/stripe"
)

const webhookIdempotencyTTL = 48 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sender := newSender(cfg, logg)

	billingRepo := billing.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	clientRepo := clients.NewRepository(dbClient.DB())
	trackingRepo := tracking.NewRepository(dbClient.DB())
	dripRepo := drip.NewRepository(dbClient.DB())

	if err := billingRepo.EnsurePromoCounter(context.Background(), cfg.Billing.PromoLimit); err != nil {
		logg.Error(context.Background(), "failed to seed promo counter", err)
		os.Exit(1)
	}

	userService, err := users.NewService(users.ServiceParams{
		Repo:              userRepo,
		BillingRepo:       billingRepo,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.ServiceParams{Repo: billingRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		BillingRepo: billingRepo,
		UserRepo:    userRepo,
		Stripe:      subscriptions.NewProcessorClient(stripeClient),
		Billing:     cfg.Billing,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	trackingService, err := tracking.NewService(tracking.ServiceParams{
		Repo:       trackingRepo,
		ClientRepo: clientRepo,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tracking service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BillingRepo:       billingRepo,
		UserRepo:          userRepo,
		StripeClient:      subscriptions.NewProcessorClient(stripeClient),
		TransactionRunner: dbClient,
		Email:             sender,
		Billing:           cfg.Billing,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	registry, err := buildJobRegistry(cfg, logg, stripeClient, billingRepo, userRepo, clientRepo, trackingRepo, dripRepo, sender)
	if err != nil {
		logg.Error(context.Background(), "failed to build job registry", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("api-jobs"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create job lock", err)
		os.Exit(1)
	}

	jobRunner, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create job runner", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			subscriptionService,
			billingService,
			userService,
			trackingService,
			stripeClient,
			webhookService,
			webhookGuard,
			registry,
			jobRunner,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func newSender(cfg *config.Config, logg *logger.Logger) email.Sender {
	if cfg.Sendgrid.APIKey == "" {
		if cfg.App.IsProd() {
			logg.Error(context.Background(), "sendgrid api key missing in production", nil)
			os.Exit(1)
		}
		logg.Warn(context.Background(), "no sendgrid key configured, using log sender")
		return &email.LogSender{Logger: logg}
	}
	sender, err := email.NewSendgridSender(cfg.Sendgrid)
	if err != nil {
		logg.Error(context.Background(), "failed to create email sender", err)
		os.Exit(1)
	}
	return sender
}

func buildJobRegistry(
	cfg *config.Config,
	logg *logger.Logger,
	stripeClient *pkgstripe.Client,
	billingRepo billing.Repository,
	userRepo users.Repository,
	clientRepo clients.Repository,
	trackingRepo tracking.Repository,
	dripRepo drip.Repository,
	sender email.Sender,
) (*cron.Registry, error) {
	expiryJob, err := cron.NewExpiryReminderJob(cron.ExpiryReminderJobParams{
		Logger:      logg,
		BillingRepo: billingRepo,
		UserRepo:    userRepo,
		Email:       sender,
		Billing:     cfg.Billing,
	})
	if err != nil {
		return nil, err
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
		return nil, err
	}

	dripJob, err := cron.NewDripJob(cron.DripJobParams{
		Logger:     logg,
		DripRepo:   dripRepo,
		ClientRepo: clientRepo,
		Email:      sender,
	})
	if err != nil {
		return nil, err
	}

	reminderJob, err := cron.NewAssessmentReminderJob(cron.AssessmentReminderJobParams{
		Logger:       logg,
		ClientRepo:   clientRepo,
		TrackingRepo: trackingRepo,
		Email:        sender,
		Messaging:    cfg.Messaging,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(expiryJob, priceJob, dripJob, reminderJob), nil
}
