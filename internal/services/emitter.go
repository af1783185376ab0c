package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"studytrack-backend/internal/models"
)

// NotificationEmitter writes notification records with get-or-create
// semantics on (user, session, type, title).
type NotificationEmitter struct {
	store     NotificationStore
	publisher Publisher
}

func NewNotificationEmitter(store NotificationStore, publisher Publisher) *NotificationEmitter {
	return &NotificationEmitter{store: store, publisher: publisher}
}

// Emit returns the stored notification and whether this call created it.
// Repeating a call with the same key returns the existing row.
func (e *NotificationEmitter) Emit(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, typ models.NotificationType, title, message string) (*models.Notification, bool, error) {
	if !typ.Valid() {
		return nil, false, fmt.Errorf("invalid notification type %q", typ)
	}
	if title == "" {
		return nil, false, fmt.Errorf("notification title is required")
	}

	n := &models.Notification{
		UserID:         userID,
		StudySessionID: sessionID,
		Type:           typ,
		Title:          title,
		Message:        message,
	}

	created, err := e.store.GetOrCreate(ctx, n)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store notification: %w", err)
	}

	if created && e.publisher != nil {
		e.publisher.PublishUpdate(ctx, userID, models.WSMessage{Type: "notification", Payload: n})
	}
	if created {
		log.Printf("notifications: created %s notification %q for user %s", typ, title, userID)
	}

	return n, created, nil
}
