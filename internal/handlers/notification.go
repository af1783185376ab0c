package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"studytrack-backend/internal/middleware"
	"studytrack-backend/internal/models"
)

type NotificationInbox interface {
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
	SetRead(ctx context.Context, id, userID uuid.UUID, read bool) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	Counts(ctx context.Context, userID uuid.UUID) (*models.NotificationCounts, error)
}

// NotificationHandler serves the signed-in user's notification inbox. Every
// lookup is scoped to the owner, so foreign ids read as not found.
type NotificationHandler struct {
	inbox NotificationInbox
}

func NewNotificationHandler(inbox NotificationInbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	unreadOnly := false
	if v := r.URL.Query().Get("unread"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "unread must be true or false", r))
			return
		}
		unreadOnly = parsed
	}

	notifications, err := h.inbox.ListByUser(r.Context(), userID, unreadOnly)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

func (h *NotificationHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.inbox.Counts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Get returns one notification and marks it read.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id, ok := pathID(w, r, "notification")
	if !ok {
		return
	}

	n, err := h.inbox.GetForUser(r.Context(), id, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if !n.IsRead {
		if err := h.inbox.SetRead(r.Context(), id, userID, true); err != nil {
			handleServiceError(w, r, err)
			return
		}
		n.IsRead = true
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notification": n,
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, true)
}

func (h *NotificationHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, false)
}

func (h *NotificationHandler) setRead(w http.ResponseWriter, r *http.Request, read bool) {
	id, ok := pathID(w, r, "notification")
	if !ok {
		return
	}

	if err := h.inbox.SetRead(r.Context(), id, middleware.GetUserID(r.Context()), read); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"is_read": read,
	})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.inbox.MarkAllRead(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
	})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "notification")
	if !ok {
		return
	}

	if err := h.inbox.Delete(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
}
