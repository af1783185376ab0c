package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"studytrack-backend/internal/middleware"
	"studytrack-backend/internal/models"
	"studytrack-backend/internal/services"
)

type SessionLookup interface {
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.StudySession, error)
}

type ReminderCreator interface {
	Create(ctx context.Context, rem *models.ScheduledReminder) error
}

type ReminderHandler struct {
	sessions  SessionLookup
	reminders ReminderCreator
	clock     services.Clock
	loc       *time.Location
}

func NewReminderHandler(sessions SessionLookup, reminders ReminderCreator, clock services.Clock, loc *time.Location) *ReminderHandler {
	if clock == nil {
		clock = services.SystemClock{}
	}
	return &ReminderHandler{sessions: sessions, reminders: reminders, clock: clock, loc: loc}
}

// Create schedules a one-off reminder reminder_minutes before the session.
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, ok := pathID(w, r, "session")
	if !ok {
		return
	}

	var req struct {
		ReminderMinutes *int `json:"reminder_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	minutes := models.DefaultReminderMinutes
	if req.ReminderMinutes != nil {
		minutes = *req.ReminderMinutes
	}

	session, err := h.sessions.GetForUser(r.Context(), sessionID, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	reminder, err := services.PlanReminder(session, minutes, h.clock.Now(), h.loc)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.reminders.Create(r.Context(), reminder); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Reminder created",
		"reminder": reminder,
	})
}
