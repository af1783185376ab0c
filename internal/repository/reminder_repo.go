package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studytrack-backend/internal/models"
)

type ReminderRepo struct {
	pool *pgxpool.Pool
}

func NewReminderRepo(pool *pgxpool.Pool) *ReminderRepo {
	return &ReminderRepo{pool: pool}
}

func (r *ReminderRepo) Create(ctx context.Context, rem *models.ScheduledReminder) error {
	rem.ID = uuid.New()
	rem.IsSent = false

	return r.pool.QueryRow(ctx, `
		INSERT INTO scheduled_reminders (id, user_id, study_session_id, reminder_time, title, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, rem.ID, rem.UserID, rem.StudySessionID, rem.ReminderTime, rem.Title, rem.Message).Scan(&rem.CreatedAt)
}

// ListDue returns unsent reminders whose fire time is at or before now, each
// with its linked session loaded.
func (r *ReminderRepo) ListDue(ctx context.Context, now time.Time) ([]models.ScheduledReminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sr.id, sr.user_id, sr.study_session_id, sr.reminder_time, sr.title, sr.message,
			sr.is_sent, sr.sent_at, sr.created_at,
			`+sessionColumns+`
		FROM scheduled_reminders sr
		JOIN study_sessions s ON s.id = sr.study_session_id
		WHERE sr.is_sent = FALSE
		  AND sr.reminder_time <= $1
		ORDER BY sr.reminder_time
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := make([]models.ScheduledReminder, 0)
	for rows.Next() {
		var rem models.ScheduledReminder
		session, err := scanSession(prefixedRow{row: rows, prefix: []interface{}{
			&rem.ID, &rem.UserID, &rem.StudySessionID, &rem.ReminderTime, &rem.Title, &rem.Message,
			&rem.IsSent, &rem.SentAt, &rem.CreatedAt,
		}})
		if err != nil {
			return nil, err
		}
		rem.Session = session
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

// MarkSent latches is_sent; false means another sweep already did.
func (r *ReminderRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_reminders
		SET is_sent = TRUE, sent_at = $2
		WHERE id = $1 AND is_sent = FALSE
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// prefixedRow lets scanSession read the session columns that follow the
// reminder columns in a joined row.
type prefixedRow struct {
	row interface {
		Scan(dest ...interface{}) error
	}
	prefix []interface{}
}

func (p prefixedRow) Scan(dest ...interface{}) error {
	return p.row.Scan(append(append([]interface{}{}, p.prefix...), dest...)...)
}
