package models

import (
	"time"

	"github.com/google/uuid"
)

type CalendarIntegration struct {
	UserID       uuid.UUID  `json:"user_id"`
	AccessToken  *string    `json:"-"`
	RefreshToken *string    `json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry"`
	CalendarID   *string    `json:"calendar_id"`
	SyncEnabled  bool       `json:"sync_enabled"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (c *CalendarIntegration) TargetCalendar() string {
	if c.CalendarID != nil && *c.CalendarID != "" {
		return *c.CalendarID
	}
	return "primary"
}
