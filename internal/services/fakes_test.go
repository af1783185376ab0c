package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studytrack-backend/internal/models"
	"studytrack-backend/internal/repository"
)

type fakeSessionStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*models.StudySession
	latchErr  map[uuid.UUID]error
	listErr   error
	latchHook func()
	lastSince time.Time
}

func newFakeSessionStore(sessions ...*models.StudySession) *fakeSessionStore {
	f := &fakeSessionStore{sessions: map[uuid.UUID]*models.StudySession{}, latchErr: map[uuid.UUID]error{}}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessionStore) get(id uuid.UUID) models.StudySession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.sessions[id]
}

func (f *fakeSessionStore) ListNotificationCandidates(ctx context.Context, since time.Time) ([]models.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSince = since
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.StudySession{}
	for _, s := range f.sessions {
		if s.NotificationEnabled && !s.NotificationSent && s.Status == models.SessionPlanned &&
			dayKey(s.StudyDate) >= dayKey(since) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) ListPlannedBetween(ctx context.Context, from, to time.Time) ([]models.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	lo, hi := dayKey(from), dayKey(to)
	out := []models.StudySession{}
	for _, s := range f.sessions {
		d := dayKey(s.StudyDate)
		if s.Status == models.SessionPlanned && d >= lo && d <= hi {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) MarkNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if f.latchHook != nil {
		f.latchHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.latchErr[id]; err != nil {
		return false, err
	}
	s, ok := f.sessions[id]
	if !ok || s.NotificationSent || !s.NotificationEnabled || s.Status != models.SessionPlanned {
		return false, nil
	}
	s.NotificationSent = true
	s.NotificationSentAt = &at
	return true, nil
}

func (f *fakeSessionStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return nil, repository.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) MarkCompleted(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID || s.Status == models.SessionCompleted {
		return false, nil
	}
	s.Status = models.SessionCompleted
	return true, nil
}

func (f *fakeSessionStore) CountCompleted(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.Status == models.SessionCompleted {
			n++
		}
	}
	return n, nil
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

type fakeNotificationStore struct {
	mu            sync.Mutex
	notifications []models.Notification
	clock         Clock
	failTitles    map[string]bool
}

func newFakeNotificationStore(clock Clock) *fakeNotificationStore {
	return &fakeNotificationStore{clock: clock, failTitles: map[string]bool{}}
}

func sameSession(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeNotificationStore) GetOrCreate(ctx context.Context, n *models.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTitles[n.Title] {
		return false, errors.New("insert failed")
	}
	for _, existing := range f.notifications {
		if existing.UserID == n.UserID && sameSession(existing.StudySessionID, n.StudySessionID) &&
			existing.Type == n.Type && existing.Title == n.Title {
			*n = existing
			return false, nil
		}
	}
	n.ID = uuid.New()
	n.CreatedAt = f.clock.Now()
	f.notifications = append(f.notifications, *n)
	return true, nil
}

func (f *fakeNotificationStore) Exists(ctx context.Context, filter models.NotificationFilter) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.UserID != filter.UserID {
			continue
		}
		if filter.StudySessionID != nil && !sameSession(n.StudySessionID, filter.StudySessionID) {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		if filter.TitleContains != "" && !strings.Contains(n.Title, filter.TitleContains) {
			continue
		}
		if !filter.CreatedSince.IsZero() && n.CreatedAt.Before(filter.CreatedSince) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeNotificationStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

func (f *fakeNotificationStore) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.notifications...)
}

type fakeReminderStore struct {
	mu        sync.Mutex
	reminders []*models.ScheduledReminder
	markErr   error
	// latchedElsewhere marks reminders another sweep latches just before
	// this one does.
	latchedElsewhere map[uuid.UUID]bool
}

func (f *fakeReminderStore) ListDue(ctx context.Context, now time.Time) ([]models.ScheduledReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ScheduledReminder{}
	for _, r := range f.reminders {
		if !r.IsSent && !r.ReminderTime.After(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReminderStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	for _, r := range f.reminders {
		if r.ID == id && f.latchedElsewhere[id] {
			r.IsSent = true
		}
		if r.ID == id && !r.IsSent {
			r.IsSent = true
			r.SentAt = &at
			return true, nil
		}
	}
	return false, nil
}

type fakeCalendar struct {
	mu     sync.Mutex
	result SyncResult
	calls  []uuid.UUID
}

func (f *fakeCalendar) Sync(ctx context.Context, userID uuid.UUID, s *models.StudySession) SyncResult {
	return f.UpdateWithNotificationMarker(ctx, userID, s)
}

func (f *fakeCalendar) UpdateWithNotificationMarker(ctx context.Context, userID uuid.UUID, s *models.StudySession) SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s.ID)
	return f.result
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []models.WSMessage
}

func (f *fakePublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

type fakeLocker struct {
	acquired bool
	err      error
	released int
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return f.acquired, f.err
}

func (f *fakeLocker) Release(ctx context.Context, key string) error {
	f.released++
	return nil
}

func plannedSession(userID uuid.UUID, date time.Time, start models.TimeOfDay) *models.StudySession {
	return &models.StudySession{
		ID:                  uuid.New(),
		UserID:              userID,
		Subject:             "Organic Chemistry",
		StudyDate:           date,
		StartTime:           start,
		EndTime:             models.NewTimeOfDay(start.Hour+1, start.Minute, 0),
		Status:              models.SessionPlanned,
		NotificationEnabled: true,
		ReminderMinutes:     30,
	}
}
