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
	"github.com/personapath/personapath-backend/pkg/enums"
	"github.com/personapath/personapath-backend/pkg/logger"
)

const (
	assessmentReminderSubject = "Your assessment is waiting for you"
	assessmentReminderBody    = "<p>Hi {{first_name}},</p>" +
		"<p>You opened your assessment but haven't finished it yet. Pick up " +
		"where you left off: <a href=\"{{assessment_url}}\">continue your " +
		"assessment</a>.</p>"
)

type assessmentClientLister interface {
	ListWithAssessmentStarted(ctx context.Context) ([]models.Client, error)
}

type engagementLog interface {
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.EmailEvent, error)
	CreateEvent(ctx context.Context, event *models.EmailEvent) error
}

// AssessmentReminderJobParams configures the assessment reminder job.
type AssessmentReminderJobParams struct {
	Logger       *logger.Logger
	ClientRepo   assessmentClientLister
	TrackingRepo engagementLog
	Email        email.Sender
	Messaging    config.MessagingConfig
}

// NewAssessmentReminderJob constructs the assessment reminder cron job.
func NewAssessmentReminderJob(params AssessmentReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.ClientRepo == nil {
		return nil, fmt.Errorf("client repository required")
	}
	if params.TrackingRepo == nil {
		return nil, fmt.Errorf("tracking repository required")
	}
	if params.Email == nil {
		return nil, fmt.Errorf("email sender required")
	}
	return &assessmentReminderJob{
		logg:         params.Logger,
		clientRepo:   params.ClientRepo,
		trackingRepo: params.TrackingRepo,
		email:        params.Email,
		cfg:          params.Messaging,
		now:          time.Now,
	}, nil
}

// assessmentReminderJob nudges clients who opened their assessment email but
// never completed the assessment. Eligibility is recomputed from the full
// engagement history on every run; the log itself is the only state.
type assessmentReminderJob struct {
	logg         *logger.Logger
	clientRepo   assessmentClientLister
	trackingRepo engagementLog
	email        email.Sender
	cfg          config.MessagingConfig
	now          func() time.Time
}

func (j *assessmentReminderJob) Name() string { return "assessment-reminders" }

func (j *assessmentReminderJob) Run(ctx context.Context) error {
	clients, err := j.clientRepo.ListWithAssessmentStarted(ctx)
	if err != nil {
		return fmt.Errorf("query clients: %w", err)
	}

	var errs []error
	count := 0
	for _, client := range clients {
		sent, err := j.remind(ctx, client)
		if err != nil {
			logCtx := j.logg.WithClientID(ctx, client.ID.String())
			j.logg.Error(logCtx, "assessment reminder failed", err)
			errs = append(errs, err)
			continue
		}
		if sent {
			count++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "assessment reminder loop complete")
	return multierr.Combine(errs...)
}

func (j *assessmentReminderJob) remind(ctx context.Context, client models.Client) (bool, error) {
	history, err := j.trackingRepo.ListByClient(ctx, client.ID)
	if err != nil {
		return false, fmt.Errorf("load history: %w", err)
	}

	now := j.now().UTC()
	decision := evaluateReminder(history, j.cfg, now)
	if !decision.eligible {
		return false, nil
	}

	body := email.Render(assessmentReminderBody, map[string]string{
		"first_name":     client.FirstName,
		"assessment_url": j.cfg.AssessmentURL,
	})
	if err := j.email.Send(ctx, "", client.Email, assessmentReminderSubject, body); err != nil {
		return false, fmt.Errorf("send reminder: %w", err)
	}

	number := decision.reminderNumber
	return true, j.trackingRepo.CreateEvent(ctx, &models.EmailEvent{
		ClientID:       client.ID,
		Type:           enums.EmailEventSent,
		IsReminder:     true,
		ReminderNumber: &number,
	})
}

type reminderDecision struct {
	eligible       bool
	reminderNumber int
}

// evaluateReminder walks one client's event history and decides whether the
// next reminder is due at now. All six gates must hold: an initial send, an
// open, no completion, remaining reminder budget, the delay elapsed since
// the last qualifying action, and no reminder already sent today.
func evaluateReminder(history []models.EmailEvent, cfg config.MessagingConfig, now time.Time) reminderDecision {
	var (
		initialSent  bool
		opened       bool
		completed    bool
		reminders    int
		lastActivity time.Time
		lastReminder time.Time
	)

	for _, event := range history {
		switch event.Type {
		case enums.EmailEventSent:
			if event.IsReminder {
				reminders++
				if event.CreatedAt.After(lastReminder) {
					lastReminder = event.CreatedAt
				}
				if event.CreatedAt.After(lastActivity) {
					lastActivity = event.CreatedAt
				}
			} else {
				initialSent = true
			}
		case enums.EmailEventOpened:
			opened = true
			if event.CreatedAt.After(lastActivity) {
				lastActivity = event.CreatedAt
			}
		case enums.EmailEventCompleted:
			completed = true
		}
	}

	if !initialSent || !opened || completed {
		return reminderDecision{}
	}
	if reminders >= cfg.ReminderMaxCount {
		return reminderDecision{}
	}
	delay := time.Duration(cfg.ReminderDelayDays) * 24 * time.Hour
	if now.Sub(lastActivity) < delay {
		return reminderDecision{}
	}
	if sameUTCDay(lastReminder, now) {
		return reminderDecision{}
	}

	return reminderDecision{eligible: true, reminderNumber: reminders + 1}
}

func sameUTCDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
