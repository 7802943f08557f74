package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/email"
	"github.com/personapath/personapath-backend/pkg/logger"
)

const (
	expiryReminderSubject = "Your PersonaPath subscription renews soon"
	expiryReminderBody    = "<p>Hi {{first_name}},</p>" +
		"<p>Your subscription renews on {{renewal_date}}. No action is needed " +
		"if you'd like to keep going.</p>"
)

type expiringSubscriptionLister interface {
	ListActiveExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Subscription, error)
}

type subscriberReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ExpiryReminderJobParams configures the renewal reminder job.
type ExpiryReminderJobParams struct {
	Logger      *logger.Logger
	BillingRepo expiringSubscriptionLister
	UserRepo    subscriberReader
	Email       email.Sender
	Billing     config.BillingConfig
}

// NewExpiryReminderJob constructs the renewal reminder cron job.
func NewExpiryReminderJob(params ExpiryReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Email == nil {
		return nil, fmt.Errorf("email sender required")
	}
	return &expiryReminderJob{
		logg:        params.Logger,
		billingRepo: params.BillingRepo,
		userRepo:    params.UserRepo,
		email:       params.Email,
		cfg:         params.Billing,
		now:         time.Now,
	}, nil
}

// expiryReminderJob mails every active subscriber whose period ends inside
// the reminder window. There is no dedup row; the one-day window combined
// with the daily cadence keeps sends single-shot.
type expiryReminderJob struct {
	logg        *logger.Logger
	billingRepo expiringSubscriptionLister
	userRepo    subscriberReader
	email       email.Sender
	cfg         config.BillingConfig
	now         func() time.Time
}

func (j *expiryReminderJob) Name() string { return "expiry-reminders" }

func (j *expiryReminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	from := now.Add(time.Duration(j.cfg.ExpiryReminderDays) * 24 * time.Hour)
	to := from.Add(24 * time.Hour)

	subs, err := j.billingRepo.ListActiveExpiringBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("query expiring subscriptions: %w", err)
	}

	var errs []error
	count := 0
	for _, sub := range subs {
		if err := j.remind(ctx, sub); err != nil {
			logCtx := j.logg.WithUserID(ctx, sub.UserID.String())
			j.logg.Error(logCtx, "renewal reminder failed", err)
			errs = append(errs, err)
			continue
		}
		count++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "renewal reminder loop complete")
	return multierr.Combine(errs...)
}

func (j *expiryReminderJob) remind(ctx context.Context, sub models.Subscription) error {
	user, err := j.userRepo.FindByID(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s not found", sub.UserID)
	}

	renewal := ""
	if sub.CurrentPeriodEnd != nil {
		renewal = sub.CurrentPeriodEnd.UTC().Format("January 2, 2006")
	}

	body := email.Render(expiryReminderBody, map[string]string{
		"first_name":   user.FirstName,
		"renewal_date": renewal,
	})
	if err := j.email.Send(ctx, "", user.Email, expiryReminderSubject, body); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}
