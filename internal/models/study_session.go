package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionPlanned   SessionStatus = "Planned"
	SessionCompleted SessionStatus = "Completed"
	SessionMissed    SessionStatus = "Missed"
)

const (
	DefaultReminderMinutes = 30
	MinReminderMinutes     = 1
	MaxReminderMinutes     = 1440
)

type StudySession struct {
	ID                  uuid.UUID     `json:"id"`
	UserID              uuid.UUID     `json:"user_id"`
	Subject             string        `json:"subject"`
	Description         *string       `json:"description"`
	StudyDate           time.Time     `json:"study_date"`
	StartTime           TimeOfDay     `json:"start_time"`
	EndTime             TimeOfDay     `json:"end_time"`
	Status              SessionStatus `json:"status"`
	NotificationEnabled bool          `json:"notification_enabled"`
	NotificationMessage *string       `json:"notification_message"`
	NotificationSent    bool          `json:"notification_sent"`
	NotificationSentAt  *time.Time    `json:"notification_sent_at"`
	ReminderMinutes     int           `json:"reminder_minutes"`
	SyncToGoogle        bool          `json:"sync_to_google"`
	GoogleEventID       *string       `json:"google_event_id"`
	LastSynced          *time.Time    `json:"last_synced"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// StartAt combines the session date and start time in loc.
func (s *StudySession) StartAt(loc *time.Location) time.Time {
	return s.StartTime.On(s.StudyDate, loc)
}

func (s *StudySession) EndAt(loc *time.Location) time.Time {
	end := s.EndTime.On(s.StudyDate, loc)
	if end.Before(s.StartAt(loc)) {
		// Sessions that run past midnight end on the following day.
		end = s.EndTime.On(s.StudyDate.AddDate(0, 0, 1), loc)
	}
	return end
}

// EffectiveReminderMinutes returns the configured lead time, or the default
// when the stored value falls outside the allowed range.
func (s *StudySession) EffectiveReminderMinutes() int {
	if !ValidReminderMinutes(s.ReminderMinutes) {
		return DefaultReminderMinutes
	}
	return s.ReminderMinutes
}

func (s *StudySession) HasGoogleEvent() bool {
	return s.GoogleEventID != nil && *s.GoogleEventID != ""
}

func (s *StudySession) ReminderTitle() string {
	return fmt.Sprintf("🔔 Study Reminder: %s", s.Subject)
}

// ReminderMessage returns the custom notification text when one is set.
func (s *StudySession) ReminderMessage() string {
	if s.NotificationMessage != nil && *s.NotificationMessage != "" {
		return *s.NotificationMessage
	}
	return fmt.Sprintf("Your study session '%s' is starting in %d minutes at %s.",
		s.Subject, s.EffectiveReminderMinutes(), s.StartTime.Format())
}

func ValidReminderMinutes(minutes int) bool {
	return minutes >= MinReminderMinutes && minutes <= MaxReminderMinutes
}
