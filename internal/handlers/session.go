package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"studytrack-backend/internal/middleware"
	"studytrack-backend/internal/services"
)

type SessionCompleter interface {
	Complete(ctx context.Context, userID, sessionID uuid.UUID) (*services.CompletionResult, error)
}

type SessionHandler struct {
	completer SessionCompleter
}

func NewSessionHandler(completer SessionCompleter) *SessionHandler {
	return &SessionHandler{completer: completer}
}

// Complete marks the session completed and returns any achievement it
// unlocked.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, ok := pathID(w, r, "session")
	if !ok {
		return
	}

	result, err := h.completer.Complete(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"message": "Session marked as completed",
		"session": result.Session,
	}
	if result.Achievement != nil {
		resp["achievement"] = result.Achievement
	}
	writeJSON(w, http.StatusOK, resp)
}
