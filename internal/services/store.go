package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studytrack-backend/internal/models"
)

// SessionStore is the subset of the study session repository used by the
// reminder pipeline.
type SessionStore interface {
	ListNotificationCandidates(ctx context.Context, since time.Time) ([]models.StudySession, error)
	ListPlannedBetween(ctx context.Context, from, to time.Time) ([]models.StudySession, error)
	MarkNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type NotificationStore interface {
	GetOrCreate(ctx context.Context, n *models.Notification) (bool, error)
	Exists(ctx context.Context, f models.NotificationFilter) (bool, error)
}

type ReminderStore interface {
	ListDue(ctx context.Context, now time.Time) ([]models.ScheduledReminder, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
