// Command notifier runs the operator batch jobs: the scheduled-reminder
// sweep, the mode-based session alerts and a single scheduler tick.
package main

import (
	"io"
	stdlog "log"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
)

var CLI struct {
	Debug bool   `help:"Enable debug logging."`
	Now   string `help:"Evaluate as if the current time were this RFC3339 instant." placeholder:"RFC3339"`

	SendReminders     SendRemindersCmd     `cmd:"" help:"Deliver due scheduled reminders."`
	SendNotifications SendNotificationsCmd `cmd:"" help:"Send daily, hourly or immediate session alerts."`
	Tick              TickCmd              `cmd:"" help:"Run one pass of the automatic session reminder scheduler."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("notifier"),
		kong.Description("Study session notification batch jobs"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	logger := newLogger(CLI.Debug)

	clock, err := clockFor(CLI.Now)
	if err != nil {
		logger.Fatal("invalid --now", "err", err)
	}

	app := &App{Logger: logger, Clock: clock}
	defer app.Close()

	if err := ctx.Run(app); err != nil {
		app.Close()
		logger.Fatal("command failed", "cmd", ctx.Command(), "err", err)
	}
}

// newLogger builds the CLI logger and routes the services' stdlib log output
// through it.
func newLogger(debug bool) *log.Logger {
	return newLoggerTo(os.Stderr, debug)
}

func newLoggerTo(w io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "notifier",
	})

	stdlog.SetFlags(0)
	stdlog.SetOutput(serviceLogWriter{logger: logger})

	return logger
}

// serviceLogWriter levels the services' stdlib log lines: failures and
// warnings are always shown, progress lines only with --debug.
type serviceLogWriter struct {
	logger *log.Logger
}

func (w serviceLogWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if isWarning(line) {
		w.logger.Warn(line)
	} else {
		w.logger.Debug(line)
	}
	return len(p), nil
}

var warningMarkers = []string{"warning", "fail", "unavailable", "panic"}

func isWarning(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range warningMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
