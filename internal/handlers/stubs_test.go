package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studytrack-backend/internal/middleware"
	"studytrack-backend/internal/models"
	"studytrack-backend/internal/repository"
)

// newRequest builds a request authenticated as userID with the chi {id}
// param set when id is non-empty.
func newRequest(method, target string, body interface{}, userID uuid.UUID, id string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")

	rctx := chi.NewRouteContext()
	if id != "" {
		rctx.URLParams.Add("id", id)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

type stubInbox struct {
	notifications []*models.Notification
	lastUnread    bool
	failList      bool
}

func (s *stubInbox) find(id, userID uuid.UUID) *models.Notification {
	for _, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			return n
		}
	}
	return nil
}

func (s *stubInbox) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	if s.failList {
		return nil, errors.New("db down")
	}
	s.lastUnread = unreadOnly
	out := []models.Notification{}
	for _, n := range s.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *stubInbox) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	n := s.find(id, userID)
	if n == nil {
		return nil, repository.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (s *stubInbox) SetRead(ctx context.Context, id, userID uuid.UUID, read bool) error {
	n := s.find(id, userID)
	if n == nil {
		return repository.ErrNotFound
	}
	n.IsRead = read
	return nil
}

func (s *stubInbox) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var updated int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (s *stubInbox) Delete(ctx context.Context, id, userID uuid.UUID) error {
	for i, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *stubInbox) Counts(ctx context.Context, userID uuid.UUID) (*models.NotificationCounts, error) {
	c := &models.NotificationCounts{}
	for _, n := range s.notifications {
		if n.UserID == userID {
			c.Total++
			if !n.IsRead {
				c.Unread++
			}
		}
	}
	return c, nil
}

type stubSessions struct {
	sessions []*models.StudySession
}

func (s *stubSessions) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.StudySession, error) {
	for _, session := range s.sessions {
		if session.ID == id && session.UserID == userID {
			return session, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubSessions) ListSyncable(ctx context.Context, userID uuid.UUID) ([]models.StudySession, error) {
	out := []models.StudySession{}
	for _, session := range s.sessions {
		if session.UserID == userID && (session.SyncToGoogle || session.HasGoogleEvent()) {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (s *stubSessions) MarkCompleted(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	for _, session := range s.sessions {
		if session.ID == id && session.UserID == userID && session.Status != models.SessionCompleted {
			session.Status = models.SessionCompleted
			return true, nil
		}
	}
	return false, nil
}

func (s *stubSessions) CountCompleted(ctx context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, session := range s.sessions {
		if session.UserID == userID && session.Status == models.SessionCompleted {
			n++
		}
	}
	return n, nil
}

// stubNotificationStore backs a real emitter in handler tests.
type stubNotificationStore struct {
	created []models.Notification
}

func (s *stubNotificationStore) GetOrCreate(ctx context.Context, n *models.Notification) (bool, error) {
	for _, existing := range s.created {
		if existing.UserID == n.UserID && existing.Type == n.Type && existing.Title == n.Title {
			*n = existing
			return false, nil
		}
	}
	n.ID = uuid.New()
	s.created = append(s.created, *n)
	return true, nil
}

func (s *stubNotificationStore) Exists(ctx context.Context, f models.NotificationFilter) (bool, error) {
	return false, nil
}

type stubReminders struct {
	created []*models.ScheduledReminder
}

func (s *stubReminders) Create(ctx context.Context, rem *models.ScheduledReminder) error {
	rem.ID = uuid.New()
	s.created = append(s.created, rem)
	return nil
}

type stubJobs struct {
	jobs []*models.Job
}

func (s *stubJobs) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = "pending"
	s.jobs = append(s.jobs, j)
	return nil
}

func (s *stubJobs) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Job, error) {
	for _, j := range s.jobs {
		if j.ID == id && j.UserID == userID {
			return j, nil
		}
	}
	return nil, repository.ErrNotFound
}

type stubQueue struct {
	queued []*models.Job
	fail   bool
}

func (s *stubQueue) Enqueue(ctx context.Context, job *models.Job) error {
	if s.fail {
		return errors.New("redis unavailable")
	}
	s.queued = append(s.queued, job)
	return nil
}
