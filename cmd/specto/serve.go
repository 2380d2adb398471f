package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/specto/internal/report"
	"github.com/ternarybob/specto/internal/server"
	"github.com/ternarybob/specto/internal/suite"
)

// launcher starts on-demand runs behind the shared run gate: the browser
// allocator is shared with scheduled runs, so at most one run executes at
// a time across both triggers.
type launcher struct {
	runner *suite.SuiteRunner
	suites map[string]suite.Suite
	gate   *suite.RunGate
	ctx    context.Context
}

func (l *launcher) Launch(suiteName string) error {
	selected, ok := l.suites[suiteName]
	if !ok {
		return fmt.Errorf("unknown suite %q", suiteName)
	}

	if !l.gate.TryAcquire() {
		return fmt.Errorf("a run is already executing")
	}

	go func() {
		defer l.gate.Release()
		if _, err := l.runner.Run(l.ctx, selected); err != nil {
			logger.Error().Err(err).Str("suite", suiteName).Msg("On-demand run failed")
		}
	}()
	return nil
}

func (l *launcher) SuiteNames() []string {
	names := make([]string, 0, len(l.suites))
	for name := range l.suites {
		names = append(names, name)
	}
	return names
}

// serve runs the results server: run history API, websocket progress feed,
// on-demand runs and optional scheduled re-runs.
func serve() {
	store, err := report.OpenResultStore(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open run archive")
	}
	defer store.Close()

	reporter := report.NewReporter(config.Report, logger)
	runner := suite.NewSuiteRunner(config, logger, store, reporter)

	hub := server.NewHub(logger, &config.WebSocket)
	runner.OnProgress(hub.BroadcastProgress)

	// Mirror harness logs to connected dashboards through arbor's context
	// channel.
	mirror := server.NewLogMirror(hub, &config.WebSocket)
	logger.SetChannel("websocket", mirror.Channel())
	defer mirror.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collect all runnable suites: built-ins plus file-defined.
	suites := suite.Builtin()
	loader := suite.NewLoader(config.Suites, logger)
	fileSuites, err := loader.LoadDir()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load suite files")
	}
	for name, s := range fileSuites {
		suites[name] = s
	}

	// One gate for every trigger: on-demand launches and scheduled ticks
	// must never run concurrently.
	gate := &suite.RunGate{}
	l := &launcher{runner: runner, suites: suites, gate: gate, ctx: ctx}
	srv := server.New(config, logger, store, hub, l)

	// Optional cron re-runs of the default suite.
	var scheduler *suite.Scheduler
	if config.Schedule.Enabled {
		scheduled, ok := suites[*suiteName]
		if !ok {
			logger.Fatal().Str("suite", *suiteName).Msg("Scheduled suite not found")
		}
		scheduler = suite.NewScheduler(config.Schedule, runner, scheduled, gate, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		defer scheduler.Stop()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Results server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
