package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"studytrack-backend/internal/models"
)

type AlertMode string

const (
	AlertDaily     AlertMode = "daily"
	AlertHourly    AlertMode = "hourly"
	AlertImmediate AlertMode = "immediate"
)

func ParseAlertMode(s string) (AlertMode, error) {
	switch m := AlertMode(s); m {
	case AlertDaily, AlertHourly, AlertImmediate:
		return m, nil
	}
	return "", fmt.Errorf("unknown alert mode %q (expected daily, hourly or immediate)", s)
}

const (
	dailyAlertTitle      = "Tomorrow's Study Session"
	hourlyTitlePrefix    = "Study Session Starting Soon: "
	immediateTitleMark   = "Starting Now"
	immediateTitlePrefix = "Study Session " + immediateTitleMark + ": "

	hourlyMinMinutes    = 30
	hourlyMaxMinutes    = 60
	hourlyLookback      = 2 * time.Hour
	immediateMinMinutes = 10
	immediateMaxMinutes = 20
	immediateLookback   = 30 * time.Minute
)

type AlertResult struct {
	Mode       AlertMode
	Candidates int
	Sent       int
	Skipped    int
	Failed     int
}

// SessionAlerter sends the lookahead reminders used by the operator batch
// command. It overlaps with the automatic scheduler and relies on its own
// title-based dedup windows.
type SessionAlerter struct {
	sessions      SessionStore
	notifications NotificationStore
	emitter       *NotificationEmitter
	clock         Clock
	loc           *time.Location
}

func NewSessionAlerter(sessions SessionStore, notifications NotificationStore, emitter *NotificationEmitter, clock Clock, loc *time.Location) *SessionAlerter {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SessionAlerter{sessions: sessions, notifications: notifications, emitter: emitter, clock: clock, loc: loc}
}

type alertPlan struct {
	title   string
	message string
	dedup   models.NotificationFilter
}

func (a *SessionAlerter) Run(ctx context.Context, mode AlertMode) (*AlertResult, error) {
	now := a.clock.Now().In(a.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
	tomorrow := today.AddDate(0, 0, 1)

	from, to := today, tomorrow
	if mode == AlertDaily {
		from = tomorrow
	}

	sessions, err := a.sessions.ListPlannedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list planned sessions: %w", err)
	}

	result := &AlertResult{Mode: mode}
	for i := range sessions {
		session := &sessions[i]

		plan, ok := a.plan(mode, session, now, today)
		if !ok {
			continue
		}
		result.Candidates++

		sent, err := a.deliver(ctx, session, plan)
		switch {
		case err != nil:
			result.Failed++
			log.Printf("session alerts: %s alert for session %s failed: %v", mode, session.ID, err)
		case sent:
			result.Sent++
		default:
			result.Skipped++
		}
	}

	return result, nil
}

// plan decides whether session is in range for mode and, if so, what to
// send and which existing notifications suppress it.
func (a *SessionAlerter) plan(mode AlertMode, session *models.StudySession, now, today time.Time) (alertPlan, bool) {
	sessionID := session.ID
	dedup := models.NotificationFilter{
		UserID:         session.UserID,
		StudySessionID: &sessionID,
		Type:           models.NotificationReminder,
	}

	if mode == AlertDaily {
		if !sameDay(session.StudyDate, today.AddDate(0, 0, 1)) {
			return alertPlan{}, false
		}
		dedup.TitleContains = dailyAlertTitle
		dedup.CreatedSince = today
		return alertPlan{
			title: dailyAlertTitle,
			message: fmt.Sprintf("Don't forget about your %s session tomorrow at %s! Make sure you're prepared.",
				session.Subject, session.StartTime.Format()),
			dedup: dedup,
		}, true
	}

	minutesUntil := int(session.StartAt(a.loc).Sub(now) / time.Minute)

	switch mode {
	case AlertHourly:
		if minutesUntil < hourlyMinMinutes || minutesUntil > hourlyMaxMinutes {
			return alertPlan{}, false
		}
		dedup.CreatedSince = now.Add(-hourlyLookback)
		return alertPlan{
			title:   hourlyTitlePrefix + session.Subject,
			message: fmt.Sprintf("Your %s session is starting in %d minutes. Get ready!", session.Subject, minutesUntil),
			dedup:   dedup,
		}, true
	case AlertImmediate:
		if minutesUntil < immediateMinMinutes || minutesUntil > immediateMaxMinutes {
			return alertPlan{}, false
		}
		dedup.TitleContains = immediateTitleMark
		dedup.CreatedSince = now.Add(-immediateLookback)
		return alertPlan{
			title:   immediateTitlePrefix + session.Subject,
			message: fmt.Sprintf("⏰ Your %s session is starting in %d minutes! Time to begin!", session.Subject, minutesUntil),
			dedup:   dedup,
		}, true
	}

	return alertPlan{}, false
}

func (a *SessionAlerter) deliver(ctx context.Context, session *models.StudySession, plan alertPlan) (bool, error) {
	exists, err := a.notifications.Exists(ctx, plan.dedup)
	if err != nil {
		return false, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if exists {
		return false, nil
	}

	sessionID := session.ID
	_, created, err := a.emitter.Emit(ctx, session.UserID, &sessionID, models.NotificationReminder, plan.title, plan.message)
	if err != nil {
		return false, err
	}
	return created, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
