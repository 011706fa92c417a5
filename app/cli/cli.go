// Package cli implements the avstream command line tool. Every run reads the
// configuration from the environment, starts an ffmpeg launcher and executes
// one command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avyn/avstream/app"
	"github.com/avyn/avstream/config"
	"github.com/avyn/avstream/config/vars"
	"github.com/avyn/avstream/ffmpeg"
	"github.com/avyn/avstream/log"
	"github.com/avyn/avstream/prometheus"

	"go.uber.org/automaxprocs/maxprocs"
)

// ErrUsage is returned by Run if the command line can't be parsed.
var ErrUsage = errors.New("invalid usage")

// App runs commands with a shared configuration and launcher.
type App struct {
	config   *config.Config
	launcher ffmpeg.Launcher
	metrics  prometheus.Metrics

	stdout io.Writer
	stderr io.Writer

	logger       log.Logger
	level        log.Level
	formatter    log.Formatter
	buffer       log.BufferWriter
	undoMaxprocs func()
}

// New reads the configuration with lookup and prepares the launcher. Log
// messages are written to stderr, command output to stdout.
func New(lookup vars.LookupFunc, stdout, stderr io.Writer) (*App, error) {
	a := &App{
		stdout: stdout,
		stderr: stderr,
	}

	if err := a.load(lookup); err != nil {
		return nil, err
	}

	undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		format = strings.TrimPrefix(format, "maxprocs: ")
		a.logger.Debug().Log(format, args...)
	}))
	if err != nil {
		a.logger.Warn().Log("%s", err.Error())
	}

	a.undoMaxprocs = undoMaxprocs

	cfg := a.config

	a.launcher, err = ffmpeg.New(ffmpeg.Config{
		Binary:            cfg.FFmpeg.Binary,
		ProbeBinary:       cfg.FFmpeg.ProbeBinary,
		VersionConstraint: cfg.FFmpeg.Version,
		LogLines:          cfg.Log.MaxLines,
		Logger:            a.logger.WithComponent("FFmpeg"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	a.metrics = prometheus.New()

	if err := a.metrics.Register(prometheus.NewUptimeCollector(cfg.Name, time.Now())); err != nil {
		a.logger.Warn().WithError(err).Log("Failed to register uptime metrics")
	}

	if err := a.metrics.Register(prometheus.NewLauncherCollector(cfg.Name, a.launcher)); err != nil {
		a.logger.Warn().WithError(err).Log("Failed to register launcher metrics")
	}

	a.logger.Info().WithFields(log.Fields{
		"ffmpeg": a.launcher.Version().Version,
	}).Log("Ready")

	return a, nil
}

func (a *App) load(lookup vars.LookupFunc) error {
	cfg := config.New()
	cfg.MergeFrom(lookup)
	cfg.Validate(false)

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.Linfo
	}

	var output log.Writer

	if cfg.Log.Format == "json" {
		output = log.NewJSONWriter(a.stderr, level)
		a.formatter = log.NewJSONFormatter()
	} else {
		output = log.NewConsoleWriter(a.stderr, level, true)
		a.formatter = log.NewConsoleFormatter(false)
	}

	output = log.NewComponentWriter(output, cfg.Log.Topics)

	// Keeps what the level hides, for dumpEvents
	if cfg.Log.Buffer > 0 {
		a.buffer = log.NewBufferWriter(log.Ldebug, cfg.Log.Buffer)
		output = log.NewMultiWriter(output, a.buffer)
	}

	a.level = level
	a.logger = log.New("Core").WithOutput(output).WithField("name", cfg.Name)

	a.logger.Debug().WithFields(log.Fields{
		"application": app.Name,
		"version":     app.Version.String(),
		"commit":      app.Commit,
		"arch":        app.Arch,
		"compiler":    app.Compiler,
	}).Log("")

	configlogger := a.logger.WithComponent("Config")
	cfg.Messages(func(level string, v vars.Variable, message string) {
		l := configlogger.WithFields(log.Fields{
			"variable":    v.Name,
			"value":       v.Value,
			"env":         v.EnvName,
			"description": v.Description,
			"override":    v.Merged,
		})

		switch level {
		case "warn":
			l.Warn().Log(message)
		case "error":
			l.Error().WithField("error", message).Log("")
		default:
			l.Debug().Log(message)
		}
	})

	if cfg.HasErrors() {
		a.logger.Error().WithField("error", "Not all variables are set or are valid. Check the error messages above. Bailing out.").Log("")
		return fmt.Errorf("not all variables are set or valid")
	}

	a.config = cfg

	return nil
}

// Close releases the resources of the app.
func (a *App) Close() {
	if a.metrics != nil {
		a.metrics.UnregisterAll()
	}

	if a.undoMaxprocs != nil {
		a.undoMaxprocs()
		a.undoMaxprocs = nil
	}
}

// Launcher returns the launcher of the app.
func (a *App) Launcher() ffmpeg.Launcher {
	return a.launcher
}

// Run executes the command in args[0] with the remaining arguments. The
// metrics are served during the command if an address is configured.
func (a *App) Run(ctx context.Context, args []string) error {
	if args == nil {
		// cobra falls back to os.Args for nil
		args = []string{}
	}

	root := a.rootCommand()
	root.SetArgs(args)

	if len(a.config.Metrics.Address) != 0 {
		stop := a.serveMetrics()
		defer stop()
	}

	logger := a.logger.WithField("args", strings.Join(args, " "))

	start := time.Now()
	logger.Debug().Log("Starting")

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, ErrUsage) {
			fmt.Fprintln(a.stderr, err.Error())
		} else {
			logger.Error().WithError(err).Log("Failed")
			a.dumpEvents()
		}

		return err
	}

	logger.Info().WithField("duration", time.Since(start).String()).Log("Done")

	return nil
}

// dumpEvents writes the buffered events that have been suppressed by the
// log level to stderr.
func (a *App) dumpEvents() {
	if a.buffer == nil {
		return
	}

	hidden := []*log.Event{}

	for _, e := range a.buffer.Events() {
		if e.Level > a.level {
			hidden = append(hidden, e)
		}
	}

	if len(hidden) == 0 {
		return
	}

	if a.config.Log.Format != "json" {
		fmt.Fprintf(a.stderr, "Last %d suppressed log messages:\n", len(hidden))
	}

	for _, e := range hidden {
		a.stderr.Write(a.formatter.Bytes(e))
	}
}

func (a *App) serveMetrics() func() {
	server := &http.Server{
		Addr:              a.config.Metrics.Address,
		Handler:           a.metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger := a.logger.WithComponent("Metrics").WithField("address", server.Addr)

	go func() {
		logger.Info().Log("Server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().WithError(err).Log("Server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		server.Shutdown(ctx)

		logger.Info().Log("Server exited")
	}
}
