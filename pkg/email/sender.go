package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/logger"
)

// Sender delivers a single transactional email. Every outbound send in the
// platform goes through this interface.
type Sender interface {
	Send(ctx context.Context, from, to, subject, html string) error
}

// LogSender writes sends to the log instead of delivering them. Used in
// development when no provider key is configured.
type LogSender struct {
	Logger *logger.Logger
}

func (s *LogSender) Send(ctx context.Context, from, to, subject, html string) error {
	if s.Logger != nil {
		logCtx := s.Logger.WithFields(ctx, map[string]any{
			"to":      to,
			"subject": subject,
		})
		s.Logger.Info(logCtx, "email send skipped (log sender)")
	}
	return nil
}

// SendgridSender implements Sender on top of the SendGrid v3 mail API.
type SendgridSender struct {
	client      *sendgrid.Client
	defaultFrom string
}

// NewSendgridSender builds the provider-backed sender.
func NewSendgridSender(cfg config.SendgridConfig) (*SendgridSender, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	return &SendgridSender{
		client:      sendgrid.NewSendClient(apiKey),
		defaultFrom: strings.TrimSpace(cfg.DefaultFrom),
	}, nil
}

// Send delivers one HTML email. A non-2xx provider response is an error; the
// caller decides whether that is fatal.
func (s *SendgridSender) Send(ctx context.Context, from, to, subject, html string) error {
	if to == "" {
		return errors.New("recipient address is required")
	}
	if from == "" {
		from = s.defaultFrom
	}
	if from == "" {
		return errors.New("sender address is required")
	}

	message := mail.NewSingleEmail(
		mail.NewEmail("", from),
		subject,
		mail.NewEmail("", to),
		"",
		html,
	)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
