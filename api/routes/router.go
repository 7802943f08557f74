package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/personapath/personapath-backend/api/controllers"
	admincontrollers "github.com/personapath/personapath-backend/api/controllers/admin"
	billingcontrollers "github.com/personapath/personapath-backend/api/controllers/billing"
	webhookcontrollers "github.com/personapath/personapath-backend/api/controllers/webhooks"
	"github.com/personapath/personapath-backend/api/middleware"
	"github.com/personapath/personapath-backend/internal/billing"
	"github.com/personapath/personapath-backend/internal/cron"
	"github.com/personapath/personapath-backend/internal/subscriptions"
	"github.com/personapath/personapath-backend/internal/tracking"
	"github.com/personapath/personapath-backend/internal/users"
	stripewebhook "github.com/personapath/personapath-backend/internal/webhooks/stripe"
	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db"
	"github.com/personapath/personapath-backend/pkg/logger"
	"github.com/personapath/personapath-backend/pkg/redis"
	"github.com/personapath/personapath-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	subscriptionService *subscriptions.Service,
	billingService *billing.Service,
	userService *users.Service,
	trackingService *tracking.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	jobRegistry *cron.Registry,
	jobRunner *cron.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Engagement pings fired from inside delivered email. Unauthenticated;
	// client ids are unguessable.
	r.Route("/t", func(r chi.Router) {
		r.Get("/open", controllers.TrackOpen(trackingService, logg))
		r.Get("/click", controllers.TrackClick(trackingService, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(middleware.SchedulerAuth(cfg.Scheduler, logg))
		r.Post("/{job}", controllers.TriggerJob(jobRegistry, jobRunner, logg))
	})

	r.Route("/api/v1/billing", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/checkout", billingcontrollers.StartCheckout(subscriptionService, logg))
		r.Post("/addon-checkout", billingcontrollers.StartAddonCheckout(subscriptionService, logg))
		r.Get("/subscription", billingcontrollers.GetSubscription(billingService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Post("/coupons", admincontrollers.CreateCoupon(subscriptionService, logg))
		r.Delete("/coupons/{id}", admincontrollers.DeleteCoupon(subscriptionService, logg))
		r.Post("/users", admincontrollers.CreateUser(userService, logg))
		r.Get("/promo-counter", admincontrollers.GetPromoCounter(billingService, logg))
	})

	return r
}
