package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studytrack-backend/internal/models"
)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

func (r *StudySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM study_sessions s WHERE s.id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetForUser scopes the lookup to the owner so foreign ids read as not found.
func (r *StudySessionRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.StudySession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM study_sessions s WHERE s.id = $1 AND s.user_id = $2`, id, userID)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// ListNotificationCandidates returns the sessions on or after since's date
// that the automatic reminder may still fire for.
func (r *StudySessionRepo) ListNotificationCandidates(ctx context.Context, since time.Time) ([]models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions s
		WHERE s.notification_enabled = TRUE
		  AND s.notification_sent = FALSE
		  AND s.status = 'Planned'
		  AND s.study_date >= $1::date
	`, dateOnly(since))
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListPlannedBetween returns Planned sessions whose study_date falls within
// [from, to], compared as calendar dates.
func (r *StudySessionRepo) ListPlannedBetween(ctx context.Context, from, to time.Time) ([]models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions s
		WHERE s.status = 'Planned'
		  AND s.study_date BETWEEN $1::date AND $2::date
		ORDER BY s.study_date, s.start_time
	`, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// dateOnly keeps the wall-clock calendar day of t so pgx encodes the day the
// caller sees, regardless of t's location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *StudySessionRepo) ListSyncable(ctx context.Context, userID uuid.UUID) ([]models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions s
		WHERE s.user_id = $1
		  AND (s.sync_to_google = TRUE OR s.google_event_id IS NOT NULL)
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// MarkNotificationSent flips the notification latch. It reports false when the
// latch was already set or the session stopped being eligible, so only one
// caller ever proceeds to emit.
func (r *StudySessionRepo) MarkNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET notification_sent = TRUE,
			notification_sent_at = $2
		WHERE id = $1
		  AND notification_sent = FALSE
		  AND notification_enabled = TRUE
		  AND status = 'Planned'
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted moves an owned session to Completed. It reports false when
// the session is missing or already completed.
func (r *StudySessionRepo) MarkCompleted(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET status = 'Completed',
			updated_at = NOW()
		WHERE id = $1
		  AND user_id = $2
		  AND status <> 'Completed'
	`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *StudySessionRepo) CountCompleted(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM study_sessions WHERE user_id = $1 AND status = 'Completed'`, userID).Scan(&n)
	return n, err
}

func (r *StudySessionRepo) SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE study_sessions SET google_event_id = $2 WHERE id = $1`, id, eventID)
	return err
}

func (r *StudySessionRepo) MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE study_sessions SET last_synced = $2 WHERE id = $1`, id, at)
	return err
}
