package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/personapath/personapath-backend/pkg/config"
	"github.com/personapath/personapath-backend/pkg/db/models"
	"github.com/personapath/personapath-backend/pkg/enums"
)

func messagingConfig() config.MessagingConfig {
	return config.MessagingConfig{
		ReminderMaxCount:  3,
		ReminderDelayDays: 3,
		AssessmentURL:     "https://app.example/assessment",
	}
}

func event(eventType enums.EmailEventType, at time.Time) models.EmailEvent {
	return models.EmailEvent{Type: eventType, CreatedAt: at}
}

func reminderEvent(number int, at time.Time) models.EmailEvent {
	return models.EmailEvent{
		Type:           enums.EmailEventSent,
		IsReminder:     true,
		ReminderNumber: &number,
		CreatedAt:      at,
	}
}

func TestEvaluateReminder(t *testing.T) {
	now := time.Date(2026, 6, 20, 10, 0, 0, 0, time.UTC)
	base := now.Add(-10 * 24 * time.Hour)

	cases := []struct {
		name       string
		history    []models.EmailEvent
		want       bool
		wantNumber int
	}{
		{
			name: "opened and idle long enough",
			history: []models.EmailEvent{
				event(enums.EmailEventSent, base),
				event(enums.EmailEventOpened, base.Add(time.Hour)),
			},
			want:       true,
			wantNumber: 1,
		},
		{
			name: "never opened",
			history: []models.EmailEvent{
				event(enums.EmailEventSent, base),
			},
			want: false,
		},
		{
			name:    "never sent",
			history: nil,
			want:    false,
		},
		{
			name: "completed blocks forever",
			history: []models.EmailEvent{
				event(enums.EmailEventSent, base),
				event(enums.EmailEventOpened, base.Add(time.Hour)),
				event(enums.EmailEventCompleted, base.Add(2*time.Hour)),
			},
			want: false,
		},
		{
			name: "reminder budget spent",
			history: []models.EmailEvent{
				event(enums.EmailEventSent, base),
				event(enums.EmailEventOpened, base.Add(time.Hour)),
				reminderEvent(1, base.Add(2*24*time.Hour)),
				reminderEvent(2, base.Add(4*24*time.Hour)),
				reminderEvent(3, base.Add(6*24*time.Hour)),
			},
			want: false,
		},
		{
			name: "delay not elapsed since open",
			history: []models.EmailEvent{
				event(enums.EmailEventSent, base),
				event(enums.EmailEventOpened, now.Add(-24*time.Hour)),
			},
			want: false,
		},
		{
			name: "delay not elapsed since last reminder",
			history: []models.EmailEvent{
				event(enums.EmailEventSent, base),
				event(enums.EmailEventOpened, base.Add(time.Hour)),
				reminderEvent(1, now.Add(-2*24*time.Hour)),
			},
			want: false,
		},
		{
			name: "second reminder numbered correctly",
			history: []models.EmailEvent{
				event(enums.EmailEventSent, base),
				event(enums.EmailEventOpened, base.Add(time.Hour)),
				reminderEvent(1, now.Add(-4*24*time.Hour)),
			},
			want:       true,
			wantNumber: 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := evaluateReminder(tc.history, messagingConfig(), now)
			if decision.eligible != tc.want {
				t.Fatalf("expected eligible=%v, got %v", tc.want, decision.eligible)
			}
			if tc.want && decision.reminderNumber != tc.wantNumber {
				t.Fatalf("expected reminder %d, got %d", tc.wantNumber, decision.reminderNumber)
			}
		})
	}
}

func TestEvaluateReminder_OnePerUTCDay(t *testing.T) {
	now := time.Date(2026, 6, 20, 22, 0, 0, 0, time.UTC)
	cfg := messagingConfig()
	cfg.ReminderDelayDays = 0

	history := []models.EmailEvent{
		event(enums.EmailEventSent, now.Add(-10*24*time.Hour)),
		event(enums.EmailEventOpened, now.Add(-9*24*time.Hour)),
		reminderEvent(1, now.Add(-12*time.Hour)),
	}
	if decision := evaluateReminder(history, cfg, now); decision.eligible {
		t.Fatalf("expected at most one reminder per day")
	}

	nextEvening := now.Add(26 * time.Hour)
	if decision := evaluateReminder(history, cfg, nextEvening); !decision.eligible {
		t.Fatalf("expected eligibility back the next day")
	}
}

func TestSameUTCDay(t *testing.T) {
	morning := time.Date(2026, 6, 20, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 6, 20, 23, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 6, 21, 0, 30, 0, 0, time.UTC)

	if !sameUTCDay(morning, evening) {
		t.Fatalf("expected same day")
	}
	if sameUTCDay(evening, nextDay) {
		t.Fatalf("expected different days")
	}
	if sameUTCDay(time.Time{}, morning) {
		t.Fatalf("zero time never matches")
	}
}

type assessmentJobHelper struct {
	job        *assessmentReminderJob
	clientRepo *stubAssessmentLister
	tracking   *stubEngagementLog
	sender     *stubSender
}

func createAssessmentJobTest(t *testing.T) *assessmentJobHelper {
	t.Helper()
	clientRepo := &stubAssessmentLister{}
	tracking := &stubEngagementLog{history: map[uuid.UUID][]models.EmailEvent{}}
	sender := &stubSender{}
	job, err := NewAssessmentReminderJob(AssessmentReminderJobParams{
		Logger:       testLogger(),
		ClientRepo:   clientRepo,
		TrackingRepo: tracking,
		Email:        sender,
		Messaging:    messagingConfig(),
	})
	if err != nil {
		t.Fatalf("setup job: %v", err)
	}
	return &assessmentJobHelper{
		job:        job.(*assessmentReminderJob),
		clientRepo: clientRepo,
		tracking:   tracking,
		sender:     sender,
	}
}

func TestAssessmentReminderJob_SendsAndLogsReminder(t *testing.T) {
	helper := createAssessmentJobTest(t)
	now := time.Date(2026, 6, 20, 10, 0, 0, 0, time.UTC)
	helper.job.now = func() time.Time { return now }

	client := models.Client{ID: uuid.New(), Email: "client@example.com", FirstName: "Ira"}
	helper.clientRepo.clients = []models.Client{client}
	helper.tracking.history[client.ID] = []models.EmailEvent{
		event(enums.EmailEventSent, now.Add(-10*24*time.Hour)),
		event(enums.EmailEventOpened, now.Add(-5*24*time.Hour)),
	}

	if err := helper.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(helper.sender.sent) != 1 {
		t.Fatalf("expected one reminder, got %d", len(helper.sender.sent))
	}
	if !strings.Contains(helper.sender.sent[0].html, "https://app.example/assessment") {
		t.Fatalf("expected assessment link rendered: %s", helper.sender.sent[0].html)
	}
	if len(helper.tracking.created) != 1 {
		t.Fatalf("expected reminder logged")
	}
	logged := helper.tracking.created[0]
	if !logged.IsReminder || logged.ReminderNumber == nil || *logged.ReminderNumber != 1 {
		t.Fatalf("unexpected reminder row %+v", logged)
	}
}

func TestAssessmentReminderJob_IneligibleClientIsSkipped(t *testing.T) {
	helper := createAssessmentJobTest(t)
	now := time.Date(2026, 6, 20, 10, 0, 0, 0, time.UTC)
	helper.job.now = func() time.Time { return now }

	client := models.Client{ID: uuid.New(), Email: "client@example.com"}
	helper.clientRepo.clients = []models.Client{client}
	helper.tracking.history[client.ID] = []models.EmailEvent{
		event(enums.EmailEventSent, now.Add(-10*24*time.Hour)),
	}

	if err := helper.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(helper.sender.sent) != 0 || len(helper.tracking.created) != 0 {
		t.Fatalf("expected no reminder for an unopened email")
	}
}

type stubAssessmentLister struct {
	clients []models.Client
}

func (s *stubAssessmentLister) ListWithAssessmentStarted(ctx context.Context) ([]models.Client, error) {
	return s.clients, nil
}

type stubEngagementLog struct {
	history map[uuid.UUID][]models.EmailEvent
	created []*models.EmailEvent
}

func (s *stubEngagementLog) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.EmailEvent, error) {
	return s.history[clientID], nil
}

func (s *stubEngagementLog) CreateEvent(ctx context.Context, event *models.EmailEvent) error {
	s.created = append(s.created, event)
	return nil
}
