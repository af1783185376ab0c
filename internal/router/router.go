package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studytrack-backend/internal/handlers"
	"studytrack-backend/internal/middleware"
	"studytrack-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	notificationHandler *handlers.NotificationHandler,
	reminderHandler *handlers.ReminderHandler,
	sessionHandler *handlers.SessionHandler,
	calendarHandler *handlers.CalendarHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Calendar syncs fan out to the Google API (5 req/min per user)
	syncLimiter := middleware.NewRateLimiter(5, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Notification Inbox ────
		r.Route("/notifications", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", notificationHandler.List)
			r.Get("/counts", notificationHandler.Counts)
			r.Put("/read-all", notificationHandler.MarkAllRead)
			r.Get("/{id}", notificationHandler.Get)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Put("/{id}/unread", notificationHandler.MarkUnread)
			r.Delete("/{id}", notificationHandler.Delete)
		})

		// ──── Session Reminders & Calendar ────
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/complete", sessionHandler.Complete)
			r.Post("/reminders", reminderHandler.Create)
			r.With(syncLimiter.Middleware).Post("/calendar-sync", calendarHandler.SyncSession)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(syncLimiter.Middleware).Post("/sync", calendarHandler.SyncAll)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", calendarHandler.GetJob)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
