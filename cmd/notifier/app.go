package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"studytrack-backend/internal/config"
	"studytrack-backend/internal/database"
	"studytrack-backend/internal/repository"
	"studytrack-backend/internal/services"
)

// App holds the connections shared by every command. They are opened on
// first use.
type App struct {
	Logger *log.Logger
	Clock  services.Clock

	cfg   *config.Config
	loc   *time.Location
	pool  *pgxpool.Pool
	redis *database.RedisClients
}

func clockFor(now string) (services.Clock, error) {
	if now == "" {
		return services.SystemClock{}, nil
	}
	at, err := time.Parse(time.RFC3339, now)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339, got %q: %w", now, err)
	}
	return services.FixedClock{At: at}, nil
}

func (a *App) connect(ctx context.Context) error {
	if a.pool != nil {
		return nil
	}

	a.cfg = config.Load()
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	a.loc = loc

	pool, err := database.NewPostgresPool(ctx, a.cfg.DatabaseURL, database.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	a.pool = pool
	a.Logger.Debug("connected to postgres", "timezone", loc)

	// Redis only carries live pushes and the tick lock; the batch jobs still
	// run without it.
	redisClients, err := database.NewRedisClients(ctx, a.cfg.RedisURL)
	if err != nil {
		a.Logger.Warn("redis unavailable, live updates disabled", "err", err)
		return nil
	}
	a.redis = redisClients
	return nil
}

func (a *App) Close() {
	if a.redis != nil {
		a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func (a *App) emitter() (*services.NotificationEmitter, *repository.NotificationRepo) {
	notifications := repository.NewNotificationRepo(a.pool)
	var publisher services.Publisher
	if a.redis != nil {
		publisher = services.NewRedisPublisher(a.redis.Queue)
	}
	return services.NewNotificationEmitter(notifications, publisher), notifications
}

func (a *App) calendar(sessions *repository.StudySessionRepo) services.CalendarSyncer {
	if !a.cfg.CalendarConfigured() {
		return nil
	}
	return services.NewGoogleCalendarService(services.GoogleCalendarOptions{
		ClientID:     a.cfg.GoogleClientID,
		ClientSecret: a.cfg.GoogleClientSecret,
		RedirectURL:  a.cfg.GoogleRedirectURL,
		Timeout:      a.cfg.CalendarTimeout(),
	}, repository.NewCalendarIntegrationRepo(a.pool), sessions, a.loc, a.Clock)
}

func (a *App) locker() services.TickLocker {
	if a.redis == nil {
		return nil
	}
	return services.NewRedisLocker(a.redis.Queue, "notifier-cli")
}
