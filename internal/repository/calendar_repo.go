package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studytrack-backend/internal/models"
)

type CalendarIntegrationRepo struct {
	pool *pgxpool.Pool
}

func NewCalendarIntegrationRepo(pool *pgxpool.Pool) *CalendarIntegrationRepo {
	return &CalendarIntegrationRepo{pool: pool}
}

func (r *CalendarIntegrationRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*models.CalendarIntegration, error) {
	c := &models.CalendarIntegration{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, access_token, refresh_token, token_expiry, calendar_id, sync_enabled, created_at, updated_at
		FROM calendar_integrations
		WHERE user_id = $1
	`, userID).Scan(
		&c.UserID, &c.AccessToken, &c.RefreshToken, &c.TokenExpiry, &c.CalendarID, &c.SyncEnabled,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// UpdateTokens persists credentials after a refresh. The refresh token is
// only replaced when the provider issued a new one.
func (r *CalendarIntegrationRepo) UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken string, refreshToken *string, expiry *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE calendar_integrations
		SET access_token = $2,
			refresh_token = COALESCE($3, refresh_token),
			token_expiry = $4,
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, accessToken, refreshToken, expiry)
	return err
}
