package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/email"
	"github.com/personapath/personapath-backend/pkg/logger"
)

type dripRepository interface {
	ListActiveProgress(ctx context.Context) ([]models.OnboardingProgress, error)
	FindSequenceWithSteps(ctx context.Context, id uuid.UUID) (*models.DripSequence, error)
	UpdateProgress(ctx context.Context, progress *models.OnboardingProgress) error
}

type clientReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
}

// DripJobParams configures the onboarding drip job.
type DripJobParams struct {
	Logger     *logger.Logger
	DripRepo   dripRepository
	ClientRepo clientReader
	Email      email.Sender
}

// NewDripJob constructs the onboarding drip cron job.
func NewDripJob(params DripJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DripRepo == nil {
		return nil, fmt.Errorf("drip repository required")
	}
	if params.ClientRepo == nil {
		return nil, fmt.Errorf("client repository required")
	}
	if params.Email == nil {
		return nil, fmt.Errorf("email sender required")
	}
	return &dripJob{
		logg:       params.Logger,
		dripRepo:   params.DripRepo,
		clientRepo: params.ClientRepo,
		email:      params.Email,
		now:        time.Now,
	}, nil
}

// dripJob advances every enrolled client through their sequence one step at
// a time. The cursor moves only after a successful send, so a failed send
// replays the same step on the next tick. Steps are never skipped.
type dripJob struct {
	logg       *logger.Logger
	dripRepo   dripRepository
	clientRepo clientReader
	email      email.Sender
	now        func() time.Time
}

func (j *dripJob) Name() string { return "onboarding-drip" }

func (j *dripJob) Run(ctx context.Context) error {
	rows, err := j.dripRepo.ListActiveProgress(ctx)
	if err != nil {
		return fmt.Errorf("query active progress: %w", err)
	}

	sequences := make(map[uuid.UUID]*models.DripSequence)
	var errs []error
	sent := 0
	for i := range rows {
		row := &rows[i]
		sequence, ok := sequences[row.SequenceID]
		if !ok {
			sequence, err = j.dripRepo.FindSequenceWithSteps(ctx, row.SequenceID)
			if err != nil {
				logCtx := j.logg.WithClientID(ctx, row.ClientID.String())
				j.logg.Error(logCtx, "drip sequence load failed", err)
				errs = append(errs, fmt.Errorf("load sequence %s: %w", row.SequenceID, err))
				continue
			}
			sequences[row.SequenceID] = sequence
		}
		if sequence == nil || !sequence.Active {
			continue
		}

		advanced, err := j.advance(ctx, row, sequence)
		if err != nil {
			logCtx := j.logg.WithClientID(ctx, row.ClientID.String())
			j.logg.Error(logCtx, "drip step failed", err)
			errs = append(errs, err)
			continue
		}
		if advanced {
			sent++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": sent})
	j.logg.Info(logCtx, "onboarding drip loop complete")
	return multierr.Combine(errs...)
}

// advance sends the next step for one progress row if its delay elapsed.
// Returns true when an email went out.
func (j *dripJob) advance(ctx context.Context, row *models.OnboardingProgress, sequence *models.DripSequence) (bool, error) {
	step := nextStep(sequence, row.CurrentStep)
	if step == nil {
		now := j.now().UTC()
		row.CompletedAt = &now
		if err := j.dripRepo.UpdateProgress(ctx, row); err != nil {
			return false, fmt.Errorf("mark completed: %w", err)
		}
		return false, nil
	}

	now := j.now().UTC()
	if !row.Due(step.DelayDays, now) {
		return false, nil
	}

	client, err := j.clientRepo.FindByID(ctx, row.ClientID)
	if err != nil {
		return false, fmt.Errorf("load client: %w", err)
	}
	if client == nil {
		return false, fmt.Errorf("client %s not found", row.ClientID)
	}

	body := email.Render(step.BodyHTML, map[string]string{
		"first_name": client.FirstName,
		"last_name":  client.LastName,
		"email":      client.Email,
	})
	if err := j.email.Send(ctx, "", client.Email, step.Subject, body); err != nil {
		return false, fmt.Errorf("send step %d: %w", step.Position, err)
	}

	row.CurrentStep = step.Position
	row.LastEmailSentAt = &now
	if err := j.dripRepo.UpdateProgress(ctx, row); err != nil {
		return false, fmt.Errorf("advance cursor: %w", err)
	}
	return true, nil
}

func nextStep(sequence *models.DripSequence, currentStep int) *models.DripStep {
	for i := range sequence.Steps {
		if sequence.Steps[i].Position == currentStep+1 {
			return &sequence.Steps[i]
		}
	}
	return nil
}
