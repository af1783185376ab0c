package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studytrack-backend/internal/models"
)

type ReminderAction string

const (
	ReminderSend            ReminderAction = "send"
	ReminderSkipNotPlanned  ReminderAction = "skip-not-planned"
	ReminderSkipSessionPast ReminderAction = "skip-session-past"
	ReminderSkipLatched     ReminderAction = "skip-already-sent"
)

// ReminderDecision records what the sweep did, or would do in a dry run, for
// one reminder.
type ReminderDecision struct {
	ReminderID uuid.UUID
	UserID     uuid.UUID
	Title      string
	Action     ReminderAction
	Reason     string
	Err        error
}

func (d ReminderDecision) String() string {
	switch d.Action {
	case ReminderSend:
		return fmt.Sprintf("send %q to user %s", d.Title, d.UserID)
	default:
		return fmt.Sprintf("skip %q (%s)", d.Title, d.Reason)
	}
}

type SweepResult struct {
	DryRun     bool
	Sent       int
	Suppressed int
	// Skipped counts reminders another sweep latched first.
	Skipped   int
	Failed    int
	Decisions []ReminderDecision
}

// ReminderSweeper delivers user-authored scheduled reminders whose fire time
// has passed.
type ReminderSweeper struct {
	reminders ReminderStore
	emitter   *NotificationEmitter
	clock     Clock
	loc       *time.Location
}

func NewReminderSweeper(reminders ReminderStore, emitter *NotificationEmitter, clock Clock, loc *time.Location) *ReminderSweeper {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderSweeper{reminders: reminders, emitter: emitter, clock: clock, loc: loc}
}

// Decide classifies a due reminder. Reminders for sessions that are no longer
// Planned, or that have already started, are suppressed.
func (s *ReminderSweeper) Decide(rem *models.ScheduledReminder, now time.Time) ReminderDecision {
	d := ReminderDecision{ReminderID: rem.ID, UserID: rem.UserID, Title: rem.Title, Action: ReminderSend}

	session := rem.Session
	switch {
	case session == nil:
		d.Action, d.Reason = ReminderSkipNotPlanned, "session missing"
	case session.Status != models.SessionPlanned:
		d.Action, d.Reason = ReminderSkipNotPlanned, fmt.Sprintf("session status: %s", session.Status)
	case session.StartAt(s.loc).Before(now):
		d.Action, d.Reason = ReminderSkipSessionPast, "session is in the past"
	}
	return d
}

// Run processes every due reminder. In dry-run mode nothing is written. The
// returned error is only set when the due reminders cannot be listed.
func (s *ReminderSweeper) Run(ctx context.Context, dryRun bool) (*SweepResult, error) {
	now := s.clock.Now()

	due, err := s.reminders.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}

	result := &SweepResult{DryRun: dryRun}
	for i := range due {
		rem := &due[i]
		d := s.Decide(rem, now)

		if !dryRun {
			latched, err := s.apply(ctx, rem, d, now)
			d.Err = err
			if err == nil && !latched {
				d.Action, d.Reason = ReminderSkipLatched, "already sent by another sweep"
			}
		}

		switch {
		case d.Err != nil:
			result.Failed++
			log.Printf("reminders: failed to process reminder %s: %v", rem.ID, d.Err)
		case d.Action == ReminderSend:
			result.Sent++
		case d.Action == ReminderSkipLatched:
			result.Skipped++
		default:
			result.Suppressed++
		}
		result.Decisions = append(result.Decisions, d)
	}

	return result, nil
}

// apply reports whether this sweep set the reminder's latch.
func (s *ReminderSweeper) apply(ctx context.Context, rem *models.ScheduledReminder, d ReminderDecision, now time.Time) (latched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing reminder: %v", r)
		}
	}()

	if d.Action == ReminderSend {
		sessionID := rem.StudySessionID
		if _, _, err := s.emitter.Emit(ctx, rem.UserID, &sessionID, models.NotificationReminder, rem.Title, rem.Message); err != nil {
			return false, err
		}
	}

	latched, err = s.reminders.MarkSent(ctx, rem.ID, now)
	if err != nil {
		return false, fmt.Errorf("failed to latch reminder: %w", err)
	}
	return latched, nil
}

// PlanReminder computes the fire time for a manual reminder created at now.
// The fire time must still be in the future.
func PlanReminder(session *models.StudySession, reminderMinutes int, now time.Time, loc *time.Location) (*models.ScheduledReminder, error) {
	if !models.ValidReminderMinutes(reminderMinutes) {
		return nil, &ValidationError{Fields: map[string]string{
			"reminder_minutes": fmt.Sprintf("must be between %d and %d", models.MinReminderMinutes, models.MaxReminderMinutes),
		}}
	}

	fireAt := session.StartAt(loc).Add(-time.Duration(reminderMinutes) * time.Minute)
	if !fireAt.After(now) {
		return nil, &ValidationError{Fields: map[string]string{
			"reminder_minutes": "Cannot create reminder for past sessions",
		}}
	}

	return &models.ScheduledReminder{
		UserID:         session.UserID,
		StudySessionID: session.ID,
		ReminderTime:   fireAt,
		Title:          fmt.Sprintf("Study Reminder: %s", session.Subject),
		Message: fmt.Sprintf("Your study session '%s' is starting in %d minutes at %s.",
			session.Subject, reminderMinutes, session.StartTime.Format()),
	}, nil
}
