package main

import (
	"context"

	"studytrack-backend/internal/repository"
	"studytrack-backend/internal/services"
)

type SendRemindersCmd struct {
	DryRun bool `help:"Report what would be sent without writing anything."`
}

func (c *SendRemindersCmd) Run(app *App) error {
	ctx := context.Background()
	if err := app.connect(ctx); err != nil {
		return err
	}

	emitter, _ := app.emitter()
	sweeper := services.NewReminderSweeper(repository.NewReminderRepo(app.pool), emitter, app.Clock, app.loc)

	result, err := sweeper.Run(ctx, c.DryRun)
	if err != nil {
		return err
	}

	for _, d := range result.Decisions {
		switch {
		case d.Err != nil:
			app.Logger.Error("reminder failed", "id", d.ReminderID, "err", d.Err)
		case c.DryRun:
			app.Logger.Info("would "+d.String(), "id", d.ReminderID)
		default:
			app.Logger.Debug(d.String(), "id", d.ReminderID)
		}
	}

	app.Logger.Info("reminder sweep finished",
		"dry_run", result.DryRun, "sent", result.Sent, "suppressed", result.Suppressed, "skipped", result.Skipped, "failed", result.Failed)
	return nil
}

type SendNotificationsCmd struct {
	Mode string `help:"Alert mode." enum:"daily,hourly,immediate" default:"hourly"`
}

func (c *SendNotificationsCmd) Run(app *App) error {
	mode, err := services.ParseAlertMode(c.Mode)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := app.connect(ctx); err != nil {
		return err
	}

	emitter, notifications := app.emitter()
	alerter := services.NewSessionAlerter(repository.NewStudySessionRepo(app.pool), notifications, emitter, app.Clock, app.loc)

	result, err := alerter.Run(ctx, mode)
	if err != nil {
		return err
	}

	app.Logger.Info("session alerts finished",
		"mode", result.Mode, "candidates", result.Candidates, "sent", result.Sent,
		"skipped", result.Skipped, "failed", result.Failed)
	return nil
}

type TickCmd struct{}

func (c *TickCmd) Run(app *App) error {
	ctx := context.Background()
	if err := app.connect(ctx); err != nil {
		return err
	}

	sessions := repository.NewStudySessionRepo(app.pool)
	emitter, _ := app.emitter()
	scheduler := services.NewSessionScheduler(sessions, emitter, services.SchedulerOptions{
		Interval: app.cfg.SchedulerInterval(),
		Location: app.loc,
		Clock:    app.Clock,
		Calendar: app.calendar(sessions),
		Locker:   app.locker(),
	})

	report, err := scheduler.RunOnce(ctx)
	if err != nil {
		return err
	}

	app.Logger.Info("scheduler tick finished",
		"checked", report.Checked, "due", report.Due, "sent", report.Sent,
		"skipped", report.Skipped, "failed", report.Failed, "sync_failed", report.SyncFailed)
	return nil
}
