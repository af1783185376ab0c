package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"

	"studytrack-backend/internal/middleware"
	"studytrack-backend/internal/models"
)

type SyncableSessions interface {
	SessionLookup
	ListSyncable(ctx context.Context, userID uuid.UUID) ([]models.StudySession, error)
}

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Job, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// CalendarHandler hands calendar syncs to the worker pool and reports job
// progress.
type CalendarHandler struct {
	sessions SyncableSessions
	jobs     JobStore
	queue    JobQueue
}

func NewCalendarHandler(sessions SyncableSessions, jobs JobStore, queue JobQueue) *CalendarHandler {
	return &CalendarHandler{sessions: sessions, jobs: jobs, queue: queue}
}

// SyncAll queues a sync for every session of the user that is, or was,
// mirrored to Google Calendar.
func (h *CalendarHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessions, err := h.sessions.ListSyncable(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	jobIDs := make([]uuid.UUID, 0, len(sessions))
	for i := range sessions {
		job, err := h.enqueue(r.Context(), userID, sessions[i].ID)
		if err != nil {
			log.Printf("calendar: failed to queue sync for session %s: %v", sessions[i].ID, err)
			continue
		}
		jobIDs = append(jobIDs, job.ID)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_ids": jobIDs,
		"queued":  len(jobIDs),
		"total":   len(sessions),
	})
}

func (h *CalendarHandler) SyncSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, ok := pathID(w, r, "session")
	if !ok {
		return
	}

	if _, err := h.sessions.GetForUser(r.Context(), sessionID, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	job, err := h.enqueue(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *CalendarHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "job")
	if !ok {
		return
	}

	job, err := h.jobs.GetForUser(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *CalendarHandler) enqueue(ctx context.Context, userID, sessionID uuid.UUID) (*models.Job, error) {
	job := &models.Job{
		UserID:      userID,
		Type:        models.JobCalendarSync,
		ReferenceID: sessionID,
	}
	if err := h.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := h.queue.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
