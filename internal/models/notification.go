package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationReminder    NotificationType = "reminder"
	NotificationAchievement NotificationType = "achievement"
	NotificationSystem      NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationReminder, NotificationAchievement, NotificationSystem:
		return true
	}
	return false
}

// Notification is unique on (UserID, StudySessionID, Type, Title).
type Notification struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	StudySessionID *uuid.UUID       `json:"study_session_id"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Type           NotificationType `json:"notification_type"`
	IsRead         bool             `json:"is_read"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NotificationFilter selects notifications for dedup lookbacks. Zero-valued
// fields are ignored.
type NotificationFilter struct {
	UserID         uuid.UUID
	StudySessionID *uuid.UUID
	Type           NotificationType
	TitleContains  string
	CreatedSince   time.Time
}

type NotificationCounts struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}
