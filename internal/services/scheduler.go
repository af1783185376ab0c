package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"studytrack-backend/internal/models"
)

const (
	DefaultSchedulerInterval = time.Minute
	schedulerTickLockKey     = "lock:session_notifications_tick"
)

// TickReport summarises one pass over the candidate sessions.
type TickReport struct {
	Checked    int
	Due        int
	Sent       int
	Skipped    int
	Failed     int
	SyncFailed int
}

func (r TickReport) String() string {
	return fmt.Sprintf("checked=%d due=%d sent=%d skipped=%d failed=%d sync_failed=%d",
		r.Checked, r.Due, r.Sent, r.Skipped, r.Failed, r.SyncFailed)
}

// SessionScheduler is the recurring driver for automatic session reminders.
// One instance is built at boot and shared; Start and Stop are idempotent.
type SessionScheduler struct {
	sessions SessionStore
	emitter  *NotificationEmitter
	calendar CalendarSyncer
	locker   TickLocker
	clock    Clock
	loc      *time.Location
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

type SchedulerOptions struct {
	Interval time.Duration
	Location *time.Location
	Clock    Clock
	Calendar CalendarSyncer
	Locker   TickLocker
}

func NewSessionScheduler(sessions SessionStore, emitter *NotificationEmitter, opts SchedulerOptions) *SessionScheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSchedulerInterval
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &SessionScheduler{
		sessions: sessions,
		emitter:  emitter,
		calendar: opts.Calendar,
		locker:   opts.Locker,
		clock:    opts.Clock,
		loc:      opts.Location,
		interval: opts.Interval,
	}
}

func (s *SessionScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
	log.Printf("session scheduler: started (interval %s, timezone %s)", s.interval, s.loc)
}

// Stop halts future ticks and waits for an in-flight tick to finish.
func (s *SessionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopChan)
	<-s.done
	s.running = false
	log.Printf("session scheduler: stopped")
}

func (s *SessionScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SessionScheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// Run on startup as well as by interval.
	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *SessionScheduler) tick() {
	report, err := s.RunOnce(context.Background())
	if err != nil {
		log.Printf("session scheduler: tick failed: %v", err)
		return
	}
	if report.Due > 0 || report.Failed > 0 {
		log.Printf("session scheduler: tick finished: %s", report)
	}
}

// RunOnce evaluates every candidate session once. Errors for individual
// sessions are logged and counted; only a failure to list candidates is
// returned.
func (s *SessionScheduler) RunOnce(ctx context.Context) (TickReport, error) {
	var report TickReport

	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, schedulerTickLockKey, s.interval)
		switch {
		case err != nil:
			log.Printf("session scheduler: tick lock unavailable, continuing without it: %v", err)
		case !acquired:
			log.Printf("session scheduler: another instance holds the tick lock, skipping")
			return report, nil
		default:
			defer func() {
				if err := s.locker.Release(context.Background(), schedulerTickLockKey); err != nil {
					log.Printf("session scheduler: failed to release tick lock: %v", err)
				}
			}()
		}
	}

	// A session is only due up to its start, so nothing before yesterday in
	// the reference zone can still fire.
	now := s.clock.Now()
	candidates, err := s.sessions.ListNotificationCandidates(ctx, now.In(s.loc).AddDate(0, 0, -1))
	if err != nil {
		return report, fmt.Errorf("failed to list notification candidates: %w", err)
	}

	for i := range candidates {
		session := &candidates[i]
		report.Checked++

		if !IsDue(session, now, s.loc) {
			continue
		}
		report.Due++

		outcome, err := s.processSession(ctx, session, now)
		switch {
		case err != nil:
			report.Failed++
			log.Printf("session scheduler: failed to notify session %s: %v", session.ID, err)
		case outcome == outcomeSkipped:
			report.Skipped++
		default:
			report.Sent++
			if outcome == outcomeSyncFailed {
				report.SyncFailed++
			}
		}
	}

	return report, nil
}

type sessionOutcome int

const (
	outcomeSent sessionOutcome = iota
	outcomeSkipped
	outcomeSyncFailed
)

// processSession latches, emits, then mirrors to the calendar, in that
// order. Losing the latch race means another tick already owns the session.
func (s *SessionScheduler) processSession(ctx context.Context, session *models.StudySession, now time.Time) (outcome sessionOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing session: %v", r)
		}
	}()

	latched, err := s.sessions.MarkNotificationSent(ctx, session.ID, now)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("failed to latch notification: %w", err)
	}
	if !latched {
		return outcomeSkipped, nil
	}
	session.NotificationSent = true
	session.NotificationSentAt = &now

	sessionID := session.ID
	if _, _, err := s.emitter.Emit(ctx, session.UserID, &sessionID, models.NotificationReminder,
		session.ReminderTitle(), session.ReminderMessage()); err != nil {
		return outcomeSkipped, err
	}
	log.Printf("session scheduler: reminder sent for session %q (%s) to user %s", session.Subject, session.ID, session.UserID)

	if s.calendar != nil && session.SyncToGoogle && session.HasGoogleEvent() {
		result := s.calendar.UpdateWithNotificationMarker(ctx, session.UserID, session)
		if !result.OK {
			log.Printf("session scheduler: warning: calendar update failed for session %s: %s", session.ID, result.Message)
			return outcomeSyncFailed, nil
		}
	}

	return outcomeSent, nil
}
