package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studytrack-backend/internal/models"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

const notificationColumns = `id, user_id, study_session_id, title, message, notification_type, is_read, created_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var (
		n   models.Notification
		typ string
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.StudySessionID, &n.Title, &n.Message, &typ, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = models.NotificationType(typ)
	return &n, nil
}

// GetOrCreate inserts n unless a row with the same (user, session, type, title)
// exists, in which case n is overwritten with the stored row. The returned
// bool reports whether a new row was written.
func (r *NotificationRepo) GetOrCreate(ctx context.Context, n *models.Notification) (bool, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, study_session_id, title, message, notification_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT notifications_dedup_key DO NOTHING
		RETURNING `+notificationColumns,
		n.ID, n.UserID, n.StudySessionID, n.Title, n.Message, string(n.Type),
	)
	created, err := scanNotification(row)
	if err == nil {
		*n = *created
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}

	existing, err := scanNotification(r.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		  AND study_session_id IS NOT DISTINCT FROM $2
		  AND notification_type = $3
		  AND title = $4
	`, n.UserID, n.StudySessionID, string(n.Type), n.Title))
	if err != nil {
		return false, fmt.Errorf("failed to load existing notification: %w", err)
	}
	*n = *existing
	return false, nil
}

func buildNotificationFilter(f models.NotificationFilter) (string, []interface{}) {
	clauses := []string{"user_id = $1"}
	args := []interface{}{f.UserID}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.StudySessionID != nil {
		add("study_session_id = $%d", *f.StudySessionID)
	}
	if f.Type != "" {
		add("notification_type = $%d", string(f.Type))
	}
	if f.TitleContains != "" {
		add("strpos(title, $%d) > 0", f.TitleContains)
	}
	if !f.CreatedSince.IsZero() {
		add("created_at >= $%d", f.CreatedSince)
	}

	return strings.Join(clauses, " AND "), args
}

func (r *NotificationRepo) Exists(ctx context.Context, f models.NotificationFilter) (bool, error) {
	where, args := buildNotificationFilter(f)

	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM notifications WHERE "+where+")", args...).Scan(&exists)
	return exists, err
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	n, err := scanNotification(r.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

func (r *NotificationRepo) SetRead(ctx context.Context, id, userID uuid.UUID, read bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = $3 WHERE id = $1 AND user_id = $2`, id, userID, read)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepo) Counts(ctx context.Context, userID uuid.UUID) (*models.NotificationCounts, error) {
	c := &models.NotificationCounts{}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_read = FALSE)
		FROM notifications
		WHERE user_id = $1
	`, userID).Scan(&c.Total, &c.Unread)
	return c, err
}
