package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"studytrack-backend/internal/models"
)

func TestCalendarHandler_SyncAllQueuesSyncableSessions(t *testing.T) {
	owner := uuid.New()
	eventID := "evt"
	sessions := &stubSessions{sessions: []*models.StudySession{
		{ID: uuid.New(), UserID: owner, SyncToGoogle: true},
		{ID: uuid.New(), UserID: owner, GoogleEventID: &eventID},
		{ID: uuid.New(), UserID: owner},
		{ID: uuid.New(), UserID: uuid.New(), SyncToGoogle: true},
	}}
	jobs, queue := &stubJobs{}, &stubQueue{}
	h := NewCalendarHandler(sessions, jobs, queue)

	rr := httptest.NewRecorder()
	h.SyncAll(rr, newRequest(http.MethodPost, "/", nil, owner, ""))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}
	if len(queue.queued) != 2 {
		t.Fatalf("expected 2 queued jobs, got %d", len(queue.queued))
	}
	for _, job := range queue.queued {
		if job.Type != models.JobCalendarSync || job.UserID != owner {
			t.Fatalf("unexpected job %+v", job)
		}
	}

	var payload struct {
		Queued int `json:"queued"`
		Total  int `json:"total"`
	}
	json.NewDecoder(rr.Body).Decode(&payload)
	if payload.Queued != 2 || payload.Total != 2 {
		t.Fatalf("unexpected response %+v", payload)
	}
}

func TestCalendarHandler_SyncSession(t *testing.T) {
	owner := uuid.New()
	session := &models.StudySession{ID: uuid.New(), UserID: owner, SyncToGoogle: true}
	jobs, queue := &stubJobs{}, &stubQueue{}
	h := NewCalendarHandler(&stubSessions{sessions: []*models.StudySession{session}}, jobs, queue)

	rr := httptest.NewRecorder()
	h.SyncSession(rr, newRequest(http.MethodPost, "/", nil, owner, session.ID.String()))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}
	if len(queue.queued) != 1 || queue.queued[0].ReferenceID != session.ID {
		t.Fatalf("expected the session sync to be queued")
	}

	rr = httptest.NewRecorder()
	h.SyncSession(rr, newRequest(http.MethodPost, "/", nil, uuid.New(), session.ID.String()))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d for a foreign session, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestCalendarHandler_QueueFailure(t *testing.T) {
	owner := uuid.New()
	session := &models.StudySession{ID: uuid.New(), UserID: owner, SyncToGoogle: true}
	h := NewCalendarHandler(&stubSessions{sessions: []*models.StudySession{session}}, &stubJobs{}, &stubQueue{fail: true})

	rr := httptest.NewRecorder()
	h.SyncSession(rr, newRequest(http.MethodPost, "/", nil, owner, session.ID.String()))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}

func TestCalendarHandler_GetJob(t *testing.T) {
	owner := uuid.New()
	jobs := &stubJobs{}
	job := &models.Job{UserID: owner, Type: models.JobCalendarSync}
	jobs.Create(context.Background(), job)
	h := NewCalendarHandler(&stubSessions{}, jobs, &stubQueue{})

	rr := httptest.NewRecorder()
	h.GetJob(rr, newRequest(http.MethodGet, "/", nil, owner, job.ID.String()))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetJob(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), job.ID.String()))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
