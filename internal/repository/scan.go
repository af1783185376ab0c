package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"studytrack-backend/internal/models"
)

// ErrNotFound is returned when a lookup by id matches no row owned by the caller.
var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const sessionColumns = `s.id, s.user_id, s.subject, s.description, s.study_date, s.start_time, s.end_time, s.status,
	s.notification_enabled, s.notification_message, s.notification_sent, s.notification_sent_at, s.reminder_minutes,
	s.sync_to_google, s.google_event_id, s.last_synced, s.created_at, s.updated_at`

func scanSession(row pgx.Row) (*models.StudySession, error) {
	var (
		s          models.StudySession
		studyDate  pgtype.Date
		start, end pgtype.Time
		status     string
	)

	err := row.Scan(
		&s.ID, &s.UserID, &s.Subject, &s.Description, &studyDate, &start, &end, &status,
		&s.NotificationEnabled, &s.NotificationMessage, &s.NotificationSent, &s.NotificationSentAt, &s.ReminderMinutes,
		&s.SyncToGoogle, &s.GoogleEventID, &s.LastSynced, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.StudyDate = studyDate.Time
	s.StartTime = models.TimeOfDayFromMicroseconds(start.Microseconds)
	s.EndTime = models.TimeOfDayFromMicroseconds(end.Microseconds)
	s.Status = models.SessionStatus(status)
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]models.StudySession, error) {
	defer rows.Close()

	sessions := make([]models.StudySession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
