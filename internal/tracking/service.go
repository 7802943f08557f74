package tracking

import (
	"context"

	"github.com/google/uuid"

	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

type clientReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
}

type ServiceParams struct {
	Repo       Repository
	ClientRepo clientReader
	Logger     *logger.Logger
}

// Service records engagement signals fired from within delivered email.
// Callers are browsers and mail clients, so unknown or replayed ids are
// absorbed rather than surfaced.
type Service struct {
	repo       Repository
	clientRepo clientReader
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tracking repo required")
	}
	if params.ClientRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "client repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:       params.Repo,
		clientRepo: params.ClientRepo,
		logg:       params.Logger,
	}, nil
}

// RecordOpen logs the first pixel load for a client. Later loads are
// no-ops; a mail client re-rendering the message must not look like
// renewed engagement.
func (s *Service) RecordOpen(ctx context.Context, clientID uuid.UUID) error {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load client")
	}
	if client == nil {
		s.logg.Warn(s.logg.WithClientID(ctx, clientID.String()), "open ping for unknown client")
		return nil
	}

	opened, err := s.repo.HasEvent(ctx, clientID, enums.EmailEventOpened)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check prior opens")
	}
	if opened {
		return nil
	}

	return s.repo.CreateEvent(ctx, &models.EmailEvent{
		ClientID: clientID,
		Type:     enums.EmailEventOpened,
	})
}

// RecordClick logs every link click. Clicks are not deduplicated; repeat
// visits are a meaningful signal.
func (s *Service) RecordClick(ctx context.Context, clientID uuid.UUID) error {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load client")
	}
	if client == nil {
		s.logg.Warn(s.logg.WithClientID(ctx, clientID.String()), "click ping for unknown client")
		return nil
	}

	return s.repo.CreateEvent(ctx, &models.EmailEvent{
		ClientID: clientID,
		Type:     enums.EmailEventClicked,
	})
}
