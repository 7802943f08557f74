package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/personapath/personapath-backend/internal/subscriptions"
	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/email"
	"github.com/personapath/personapath-backend/pkg/logger"
)

const (
	priceNoticeSubject   = "Heads up: your PersonaPath price changes soon"
	priceNoticeBody      = "<p>Hi {{first_name}},</p>" +
		"<p>Your promotional pricing ends on {{transition_date}}. Your plan " +
		"moves from ${{old_price}}/mo to ${{new_price}}/mo. Nothing to do; " +
		"this is just advance notice.</p>"
	priceNoticeWindowSkew = 12 * time.Hour
)

type scheduleLister interface {
	ListSchedules(ctx context.Context, params *stripe.SubscriptionScheduleListParams) ([]*stripe.SubscriptionSchedule, error)
}

type transitionNoticeRepository interface {
	TransitionNoticeExists(ctx context.Context, userID uuid.UUID, scheduleID string) (bool, error)
	CreateTransitionNotice(ctx context.Context, notice *models.PriceTransitionNotice) error
}

// PriceTransitionJobParams configures the price-change notice job.
type PriceTransitionJobParams struct {
	Logger      *logger.Logger
	Stripe      scheduleLister
	BillingRepo transitionNoticeRepository
	UserRepo    subscriberReader
	Email       email.Sender
	Billing     config.BillingConfig
}

// NewPriceTransitionJob constructs the price transition notice cron job.
func NewPriceTransitionJob(params PriceTransitionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
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
	return &priceTransitionJob{
		logg:        params.Logger,
		stripe:      params.Stripe,
		billingRepo: params.BillingRepo,
		userRepo:    params.UserRepo,
		email:       params.Email,
		cfg:         params.Billing,
		now:         time.Now,
	}, nil
}

// priceTransitionJob warns promotional subscribers thirty days before their
// schedule flips to the regular price. The notice row makes each (user,
// schedule) pair write-once.
type priceTransitionJob struct {
	logg        *logger.Logger
	stripe      scheduleLister
	billingRepo transitionNoticeRepository
	userRepo    subscriberReader
	email       email.Sender
	cfg         config.BillingConfig
	now         func() time.Time
}

func (j *priceTransitionJob) Name() string { return "price-transitions" }

func (j *priceTransitionJob) Run(ctx context.Context) error {
	schedules, err := j.stripe.ListSchedules(ctx, &stripe.SubscriptionScheduleListParams{})
	if err != nil {
		return fmt.Errorf("list subscription schedules: %w", err)
	}

	now := j.now().UTC()
	center := now.Add(time.Duration(j.cfg.PriceNoticeDays) * 24 * time.Hour)
	windowStart := center.Add(-priceNoticeWindowSkew)
	windowEnd := center.Add(priceNoticeWindowSkew)

	var errs []error
	count := 0
	for _, schedule := range schedules {
		transition, ok := secondPhaseStart(schedule)
		if !ok {
			continue
		}
		if transition.Before(windowStart) || transition.After(windowEnd) {
			continue
		}
		if err := j.notify(ctx, schedule, transition); err != nil {
			j.logg.Error(ctx, fmt.Sprintf("price notice failed for schedule %s", schedule.ID), err)
			errs = append(errs, err)
			continue
		}
		count++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "price transition loop complete")
	return multierr.Combine(errs...)
}

func (j *priceTransitionJob) notify(ctx context.Context, schedule *stripe.SubscriptionSchedule, transition time.Time) error {
	userID, err := subscriptions.UserIDFromMetadata(schedule.Metadata)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", schedule.ID, err)
	}

	exists, err := j.billingRepo.TransitionNoticeExists(ctx, userID, schedule.ID)
	if err != nil {
		return fmt.Errorf("check notice row: %w", err)
	}
	if exists {
		return nil
	}

	user, err := j.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s not found", userID)
	}

	body := email.Render(priceNoticeBody, map[string]string{
		"first_name":      user.FirstName,
		"transition_date": transition.Format("January 2, 2006"),
		"old_price":       formatCents(j.cfg.EarlyBirdPriceCents),
		"new_price":       formatCents(j.cfg.RegularPriceCents),
	})
	if err := j.email.Send(ctx, "", user.Email, priceNoticeSubject, body); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}

	return j.billingRepo.CreateTransitionNotice(ctx, &models.PriceTransitionNotice{
		UserID:           userID,
		StripeScheduleID: schedule.ID,
		SentAt:           j.now().UTC(),
	})
}

func secondPhaseStart(schedule *stripe.SubscriptionSchedule) (time.Time, bool) {
	if schedule == nil || len(schedule.Phases) < 2 {
		return time.Time{}, false
	}
	start := schedule.Phases[1].StartDate
	if start == 0 {
		return time.Time{}, false
	}
	return time.Unix(start, 0).UTC(), true
}

func formatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
