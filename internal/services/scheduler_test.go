package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studytrack-backend/internal/models"
)

type schedulerFixture struct {
	sessions      *fakeSessionStore
	notifications *fakeNotificationStore
	calendar      *fakeCalendar
	scheduler     *SessionScheduler
}

func newSchedulerFixture(now time.Time, sessions ...*models.StudySession) *schedulerFixture {
	clock := FixedClock{At: now}
	f := &schedulerFixture{
		sessions:      newFakeSessionStore(sessions...),
		notifications: newFakeNotificationStore(clock),
		calendar:      &fakeCalendar{result: SyncResult{OK: true}},
	}
	f.scheduler = NewSessionScheduler(f.sessions, NewNotificationEmitter(f.notifications, nil), SchedulerOptions{
		Interval: time.Hour,
		Location: time.UTC,
		Clock:    clock,
		Calendar: f.calendar,
	})
	return f
}

func TestRunOnce_SendsDueReminder(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	f := newSchedulerFixture(at(13, 28), s)

	report, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickReport{Checked: 1, Due: 1, Sent: 1}, report)

	notes := f.notifications.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "🔔 Study Reminder: Organic Chemistry", notes[0].Title)
	assert.Equal(t, "Your study session 'Organic Chemistry' is starting in 30 minutes at 14:00.", notes[0].Message)
	assert.Equal(t, models.NotificationReminder, notes[0].Type)
	require.NotNil(t, notes[0].StudySessionID)
	assert.Equal(t, s.ID, *notes[0].StudySessionID)

	stored := f.sessions.get(s.ID)
	assert.True(t, stored.NotificationSent)
	require.NotNil(t, stored.NotificationSentAt)
	assert.Equal(t, at(13, 28), *stored.NotificationSentAt)
}

func TestRunOnce_NotYetDue(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	f := newSchedulerFixture(at(13, 25), s)

	report, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Due)
	assert.Zero(t, f.notifications.count())
	assert.False(t, f.sessions.get(s.ID).NotificationSent)
}

func TestRunOnce_UsesCustomMessage(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	custom := "Bring the lab notebook"
	s.NotificationMessage = &custom
	f := newSchedulerFixture(at(13, 40), s)

	_, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)

	notes := f.notifications.all()
	require.Len(t, notes, 1)
	assert.Equal(t, custom, notes[0].Message)
}

func TestRunOnce_LatchIsMonotonic(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	f := newSchedulerFixture(at(13, 30), s)

	for i := 0; i < 3; i++ {
		_, err := f.scheduler.RunOnce(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.notifications.count())
	assert.True(t, f.sessions.get(s.ID).NotificationSent)
}

func TestRunOnce_OverlappingTicksNotifyOnce(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	f := newSchedulerFixture(at(13, 30), s)

	// Hold every latch attempt until both ticks have read the candidate list.
	gate := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)
	f.sessions.latchHook = func() {
		arrived.Done()
		<-gate
	}

	reports := make([]TickReport, 2)
	var wg sync.WaitGroup
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			report, err := f.scheduler.RunOnce(context.Background())
			assert.NoError(t, err)
			reports[i] = report
		}(i)
	}
	arrived.Wait()
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, f.notifications.count())
	assert.Equal(t, 1, reports[0].Sent+reports[1].Sent)
	assert.Equal(t, 1, reports[0].Skipped+reports[1].Skipped)
}

func TestRunOnce_SessionChangedBeforeLatch(t *testing.T) {
	tests := []struct {
		name   string
		change func(s *models.StudySession)
	}{
		{"completed", func(s *models.StudySession) { s.Status = models.SessionCompleted }},
		{"notifications disabled", func(s *models.StudySession) { s.NotificationEnabled = false }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
			f := newSchedulerFixture(at(13, 30), s)

			// The session was listed as a candidate, then edited before the latch.
			f.sessions.latchHook = func() {
				f.sessions.mu.Lock()
				defer f.sessions.mu.Unlock()
				tc.change(f.sessions.sessions[s.ID])
			}

			report, err := f.scheduler.RunOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, TickReport{Checked: 1, Due: 1, Skipped: 1}, report)
			assert.Zero(t, f.notifications.count())
			assert.False(t, f.sessions.get(s.ID).NotificationSent)
		})
	}
}

func TestRunOnce_ListsFromYesterday(t *testing.T) {
	stale := plannedSession(uuid.New(), testDate.AddDate(0, 0, -3), models.NewTimeOfDay(14, 0, 0))
	fresh := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	f := newSchedulerFixture(at(13, 30), stale, fresh)

	report, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, dayKey(testDate.AddDate(0, 0, -1)), dayKey(f.sessions.lastSince))
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Sent)
	assert.False(t, f.sessions.get(stale.ID).NotificationSent)
}

func TestRunOnce_CalendarFailureDoesNotBlockReminder(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	eventID := "evt-1"
	s.SyncToGoogle = true
	s.GoogleEventID = &eventID
	f := newSchedulerFixture(at(13, 45), s)
	f.calendar.result = SyncResult{OK: false, Message: "Google Calendar API error: boom"}

	report, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.SyncFailed)
	assert.Equal(t, 1, f.notifications.count())
	assert.True(t, f.sessions.get(s.ID).NotificationSent)
	assert.Equal(t, []uuid.UUID{s.ID}, f.calendar.calls)
}

func TestRunOnce_SkipsCalendarWithoutEvent(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	s.SyncToGoogle = true
	f := newSchedulerFixture(at(13, 45), s)

	_, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.calendar.calls)
}

func TestRunOnce_IsolatesPerSessionFailures(t *testing.T) {
	userID := uuid.New()
	broken := plannedSession(userID, testDate, models.NewTimeOfDay(14, 0, 0))
	healthy := plannedSession(userID, testDate, models.NewTimeOfDay(14, 10, 0))
	healthy.Subject = "Linear Algebra"
	f := newSchedulerFixture(at(13, 45), broken, healthy)
	f.sessions.latchErr[broken.ID] = errors.New("connection reset")

	report, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Sent)
	assert.False(t, f.sessions.get(broken.ID).NotificationSent)
	assert.True(t, f.sessions.get(healthy.ID).NotificationSent)
}

func TestRunOnce_ListFailureIsReturned(t *testing.T) {
	f := newSchedulerFixture(at(13, 45))
	f.sessions.listErr = errors.New("db down")

	_, err := f.scheduler.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestRunOnce_EmitterBackstopsLostLatch(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	f := newSchedulerFixture(at(13, 45), s)

	// A reminder exists but the latch was never written.
	sessionID := s.ID
	_, _, err := NewNotificationEmitter(f.notifications, nil).Emit(context.Background(), s.UserID, &sessionID,
		models.NotificationReminder, s.ReminderTitle(), s.ReminderMessage())
	require.NoError(t, err)

	_, err = f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.notifications.count())
	assert.True(t, f.sessions.get(s.ID).NotificationSent)
}

func TestRunOnce_TickLock(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))

	t.Run("held elsewhere skips the tick", func(t *testing.T) {
		f := newSchedulerFixture(at(13, 45), s)
		f.scheduler.locker = &fakeLocker{acquired: false}

		report, err := f.scheduler.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, TickReport{}, report)
		assert.Zero(t, f.notifications.count())
	})

	t.Run("lock errors fall through to the latch", func(t *testing.T) {
		copied := *s
		f := newSchedulerFixture(at(13, 45), &copied)
		locker := &fakeLocker{err: errors.New("redis unavailable")}
		f.scheduler.locker = locker

		report, err := f.scheduler.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Sent)
		assert.Zero(t, locker.released)
	})

	t.Run("acquired lock is released", func(t *testing.T) {
		copied := *s
		f := newSchedulerFixture(at(13, 45), &copied)
		locker := &fakeLocker{acquired: true}
		f.scheduler.locker = locker

		_, err := f.scheduler.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, locker.released)
	})
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s := plannedSession(uuid.New(), testDate, models.NewTimeOfDay(14, 0, 0))
	f := newSchedulerFixture(at(13, 45), s)

	f.scheduler.Stop()
	assert.False(t, f.scheduler.Running())

	f.scheduler.Start()
	f.scheduler.Start()
	assert.True(t, f.scheduler.Running())

	// The first tick runs immediately on start.
	require.Eventually(t, func() bool { return f.notifications.count() == 1 }, time.Second, 5*time.Millisecond)

	f.scheduler.Stop()
	f.scheduler.Stop()
	assert.False(t, f.scheduler.Running())
	assert.Equal(t, 1, f.notifications.count())

	f.scheduler.Start()
	assert.True(t, f.scheduler.Running())
	f.scheduler.Stop()
}
