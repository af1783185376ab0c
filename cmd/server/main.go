package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studytrack-backend/internal/config"
	"studytrack-backend/internal/database"
	"studytrack-backend/internal/handlers"
	"studytrack-backend/internal/middleware"
	"studytrack-backend/internal/repository"
	"studytrack-backend/internal/router"
	"studytrack-backend/internal/services"
	"studytrack-backend/internal/websocket"
	"studytrack-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting StudyTrack Backend...")
	ctx := context.Background()

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("✗ %v", err)
	}
	log.Printf("✓ Environment variables loaded (timezone %s)", loc)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.PoolOptions{})
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewStudySessionRepo(pool)
	notificationRepo := repository.NewNotificationRepo(pool)
	reminderRepo := repository.NewReminderRepo(pool)
	calendarRepo := repository.NewCalendarIntegrationRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewRedisPublisher(redisClients.Queue)
	emitter := services.NewNotificationEmitter(notificationRepo, publisher)

	var calendar services.CalendarSyncer
	if cfg.CalendarConfigured() {
		calendar = services.NewGoogleCalendarService(services.GoogleCalendarOptions{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Timeout:      cfg.CalendarTimeout(),
		}, calendarRepo, sessionRepo, loc, services.SystemClock{})
		log.Println("✓ Google Calendar client configured")
	} else {
		log.Println("⚠ GOOGLE_CLIENT_ID/SECRET not set, calendar sync disabled")
	}

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, sessionRepo, jobRepo, calendar, publisher, cfg.WorkerCount)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 6: Start Session Scheduler ────
	var scheduler *services.SessionScheduler
	if cfg.SchedulerEnabled {
		scheduler = services.NewSessionScheduler(sessionRepo, emitter, services.SchedulerOptions{
			Interval: cfg.SchedulerInterval(),
			Location: loc,
			Calendar: calendar,
			Locker:   services.NewRedisLocker(redisClients.Queue, instanceName()),
		})
		scheduler.Start()
		log.Println("✓ Session notification scheduler started")
	} else {
		log.Println("⚠ SCHEDULER_ENABLED=false, automatic reminders are off")
	}

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		handlers.NewNotificationHandler(notificationRepo),
		handlers.NewReminderHandler(sessionRepo, reminderRepo, services.SystemClock{}, loc),
		handlers.NewSessionHandler(services.NewSessionCompleter(sessionRepo, emitter)),
		handlers.NewCalendarHandler(sessionRepo, jobRepo, worker.NewQueue(redisClients.Queue)),
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: background work drains before the listener closes,
	// and main waits for all of it before the deferred pool closes run.
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		var stops []func()
		if scheduler != nil {
			stops = append(stops, scheduler.Stop)
		}
		stops = append(stops, workerPool.Stop, wsHub.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := shutdown(ctx, server, stops...); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
	}()

	log.Printf("✓ StudyTrack Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-done
	log.Println("✓ Shutdown complete")
}

type httpShutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown runs stops in order, then closes the HTTP server.
func shutdown(ctx context.Context, server httpShutdowner, stops ...func()) error {
	for _, stop := range stops {
		stop()
	}
	return server.Shutdown(ctx)
}

// instanceName identifies this process as the tick lock owner.
func instanceName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
