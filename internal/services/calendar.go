package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"studytrack-backend/internal/models"
)

// SyncResult is the outcome of a calendar call. Failures are ordinary values;
// the adapter never returns an error or panics past its boundary.
type SyncResult struct {
	OK      bool
	Message string
}

func syncOK(format string, args ...interface{}) SyncResult {
	return SyncResult{OK: true, Message: fmt.Sprintf(format, args...)}
}

func syncFailed(format string, args ...interface{}) SyncResult {
	return SyncResult{OK: false, Message: fmt.Sprintf(format, args...)}
}

type CalendarSyncer interface {
	Sync(ctx context.Context, userID uuid.UUID, s *models.StudySession) SyncResult
	UpdateWithNotificationMarker(ctx context.Context, userID uuid.UUID, s *models.StudySession) SyncResult
}

type CalendarTokenStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.CalendarIntegration, error)
	UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken string, refreshToken *string, expiry *time.Time) error
}

type CalendarEventStore interface {
	SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error
	MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error
}

const calendarScope = "https://www.googleapis.com/auth/calendar"

type GoogleCalendarService struct {
	oauth    *oauth2.Config
	tokens   CalendarTokenStore
	events   CalendarEventStore
	loc      *time.Location
	clock    Clock
	timeout  time.Duration
	endpoint string
}

type GoogleCalendarOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
	// Endpoint overrides the Calendar API base URL.
	Endpoint string
}

func NewGoogleCalendarService(opts GoogleCalendarOptions, tokens CalendarTokenStore, events CalendarEventStore, loc *time.Location, clock Clock) *GoogleCalendarService {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &GoogleCalendarService{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       []string{calendarScope},
			Endpoint:     google.Endpoint,
		},
		tokens:   tokens,
		events:   events,
		loc:      loc,
		clock:    clock,
		timeout:  opts.Timeout,
		endpoint: opts.Endpoint,
	}
}

// Sync creates, updates or deletes the session's event depending on whether
// sync is enabled and an event already exists.
func (c *GoogleCalendarService) Sync(ctx context.Context, userID uuid.UUID, s *models.StudySession) (result SyncResult) {
	defer recoverSync(&result)

	if !s.SyncToGoogle {
		if s.HasGoogleEvent() {
			return c.deleteEvent(ctx, userID, s)
		}
		return syncOK("Sync disabled, no action needed")
	}
	if s.HasGoogleEvent() {
		return c.updateEvent(ctx, userID, s, sessionEvent(s, c.loc))
	}
	return c.createEvent(ctx, userID, s)
}

// UpdateWithNotificationMarker rewrites the session's event so it reflects
// the reminder state and lead time.
func (c *GoogleCalendarService) UpdateWithNotificationMarker(ctx context.Context, userID uuid.UUID, s *models.StudySession) (result SyncResult) {
	defer recoverSync(&result)

	if !s.HasGoogleEvent() {
		return syncFailed("No Google Calendar event found for this session")
	}

	svc, calendarID, res := c.client(ctx, userID)
	if !res.OK {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	updated, err := svc.Events.Update(calendarID, *s.GoogleEventID, notificationEvent(s, c.loc)).Context(ctx).Do()
	if err != nil {
		return syncFailed("Google Calendar API error: %v", err)
	}

	c.markSynced(ctx, s)
	return syncOK("Event updated with notification info: %s", updated.HtmlLink)
}

func (c *GoogleCalendarService) createEvent(ctx context.Context, userID uuid.UUID, s *models.StudySession) SyncResult {
	svc, calendarID, res := c.client(ctx, userID)
	if !res.OK {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := svc.Events.Insert(calendarID, sessionEvent(s, c.loc)).Context(ctx).Do()
	if err != nil {
		return syncFailed("Google Calendar API error: %v", err)
	}

	eventID := created.Id
	if err := c.events.SetGoogleEventID(ctx, s.ID, &eventID); err != nil {
		log.Printf("calendar: created event %s but failed to store it on session %s: %v", eventID, s.ID, err)
	}
	s.GoogleEventID = &eventID
	c.markSynced(ctx, s)

	return syncOK("Event created: %s", created.HtmlLink)
}

func (c *GoogleCalendarService) updateEvent(ctx context.Context, userID uuid.UUID, s *models.StudySession, event *calendar.Event) SyncResult {
	svc, calendarID, res := c.client(ctx, userID)
	if !res.OK {
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	updated, err := svc.Events.Update(calendarID, *s.GoogleEventID, event).Context(callCtx).Do()
	if err != nil {
		if isNotFound(err) {
			// Removed on the calendar side; recreate it.
			return c.createEvent(ctx, userID, s)
		}
		return syncFailed("Google Calendar API error: %v", err)
	}

	c.markSynced(callCtx, s)
	return syncOK("Event updated: %s", updated.HtmlLink)
}

func (c *GoogleCalendarService) deleteEvent(ctx context.Context, userID uuid.UUID, s *models.StudySession) SyncResult {
	svc, calendarID, res := c.client(ctx, userID)
	if !res.OK {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := svc.Events.Delete(calendarID, *s.GoogleEventID).Context(ctx).Do(); err != nil && !isNotFound(err) {
		return syncFailed("Google Calendar API error: %v", err)
	}

	if err := c.events.SetGoogleEventID(ctx, s.ID, nil); err != nil {
		log.Printf("calendar: failed to clear event id on session %s: %v", s.ID, err)
	}
	s.GoogleEventID = nil
	return syncOK("Event deleted successfully")
}

// client builds a Calendar API client from the user's stored credentials,
// refreshing and persisting the access token when it has expired.
func (c *GoogleCalendarService) client(ctx context.Context, userID uuid.UUID) (*calendar.Service, string, SyncResult) {
	integration, err := c.tokens.GetByUser(ctx, userID)
	if err != nil || integration == nil || !integration.SyncEnabled || integration.AccessToken == nil {
		return nil, "", syncFailed("No valid Google Calendar credentials")
	}

	stored := &oauth2.Token{AccessToken: *integration.AccessToken}
	if integration.RefreshToken != nil {
		stored.RefreshToken = *integration.RefreshToken
	}
	if integration.TokenExpiry != nil {
		stored.Expiry = *integration.TokenExpiry
	}

	refreshCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.oauth.TokenSource(refreshCtx, stored).Token()
	if err != nil {
		return nil, "", syncFailed("No valid Google Calendar credentials: %v", err)
	}

	if token.AccessToken != stored.AccessToken {
		var refresh *string
		if token.RefreshToken != "" && token.RefreshToken != stored.RefreshToken {
			refresh = &token.RefreshToken
		}
		expiry := token.Expiry
		if err := c.tokens.UpdateTokens(ctx, userID, token.AccessToken, refresh, &expiry); err != nil {
			log.Printf("calendar: failed to persist refreshed token for user %s: %v", userID, err)
		}
	}

	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}
	if c.endpoint != "" {
		opts = []option.ClientOption{
			option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))),
			option.WithEndpoint(c.endpoint),
		}
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, "", syncFailed("Failed to create calendar client: %v", err)
	}

	return svc, integration.TargetCalendar(), syncOK("")
}

func (c *GoogleCalendarService) markSynced(ctx context.Context, s *models.StudySession) {
	now := c.clock.Now()
	if err := c.events.MarkSynced(ctx, s.ID, now); err != nil {
		log.Printf("calendar: failed to record last sync for session %s: %v", s.ID, err)
		return
	}
	s.LastSynced = &now
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone)
}

func recoverSync(result *SyncResult) {
	if r := recover(); r != nil {
		*result = syncFailed("calendar sync panicked: %v", r)
	}
}

func eventTimes(s *models.StudySession, loc *time.Location) (*calendar.EventDateTime, *calendar.EventDateTime) {
	zone := loc.String()
	return &calendar.EventDateTime{DateTime: s.StartAt(loc).Format(time.RFC3339), TimeZone: zone},
		&calendar.EventDateTime{DateTime: s.EndAt(loc).Format(time.RFC3339), TimeZone: zone}
}

func describeSession(s *models.StudySession) string {
	description := "No description"
	if s.Description != nil && *s.Description != "" {
		description = *s.Description
	}
	return fmt.Sprintf("Subject: %s\nDescription: %s\nStatus: %s\n", s.Subject, description, s.Status)
}

func sessionEvent(s *models.StudySession, loc *time.Location) *calendar.Event {
	start, end := eventTimes(s, loc)
	return &calendar.Event{
		Summary:     "Study Session: " + s.Subject,
		Description: describeSession(s) + "Updated via Study Tracker",
		Start:       start,
		End:         end,
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: int64(s.EffectiveReminderMinutes())},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func notificationEvent(s *models.StudySession, loc *time.Location) *calendar.Event {
	start, end := eventTimes(s, loc)

	status := "⏰ Notification pending"
	if s.NotificationSent {
		status = "✅ Notification sent"
	}
	custom := "Default notification"
	if s.NotificationMessage != nil && *s.NotificationMessage != "" {
		custom = *s.NotificationMessage
	}
	minutes := int64(s.EffectiveReminderMinutes())

	return &calendar.Event{
		Summary: "Study Session: " + s.Subject,
		Description: describeSession(s) +
			status + "\n" +
			fmt.Sprintf("Reminder: %d minutes before session\n", minutes) +
			"Custom message: " + custom + "\n" +
			"Updated via Study Tracker",
		Start: start,
		End:   end,
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: minutes},
				{Method: "popup", Minutes: minutes},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}
