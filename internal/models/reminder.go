package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledReminder is a user-authored reminder for a session. Session is
// populated by the due-reminder query.
type ScheduledReminder struct {
	ID             uuid.UUID     `json:"id"`
	UserID         uuid.UUID     `json:"user_id"`
	StudySessionID uuid.UUID     `json:"study_session_id"`
	ReminderTime   time.Time     `json:"reminder_time"`
	Title          string        `json:"title"`
	Message        string        `json:"message"`
	IsSent         bool          `json:"is_sent"`
	SentAt         *time.Time    `json:"sent_at"`
	CreatedAt      time.Time     `json:"created_at"`
	Session        *StudySession `json:"-"`
}
