package services

import (
	"time"

	"studytrack-backend/internal/models"
)

// NotificationTolerance widens the reminder window to absorb polling
// granularity: a tick that lands just before notify_at still fires.
const NotificationTolerance = 2 * time.Minute

// NotifyAt is the instant the automatic reminder for s becomes due.
func NotifyAt(s *models.StudySession, loc *time.Location) time.Time {
	return s.StartAt(loc).Add(-time.Duration(s.EffectiveReminderMinutes()) * time.Minute)
}

// CanNotify reports whether s is still eligible for its automatic reminder,
// independent of time.
func CanNotify(s *models.StudySession) bool {
	return s.NotificationEnabled && !s.NotificationSent && s.Status == models.SessionPlanned
}

// IsDue reports whether now falls within [notify_at - tolerance, start].
// Sessions whose start has passed are never due.
func IsDue(s *models.StudySession, now time.Time, loc *time.Location) bool {
	if !CanNotify(s) {
		return false
	}

	start := s.StartAt(loc)
	windowOpen := NotifyAt(s, loc).Add(-NotificationTolerance)

	return !now.Before(windowOpen) && !now.After(start)
}
