package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/specto/internal/report"
	"github.com/ternarybob/specto/internal/suite"
)

// runOnce executes the selected suite a single time and returns the exit
// code: 0 when no scenario failed, 1 otherwise.
func runOnce() int {
	selected, err := resolveSuite(*suiteName)
	if err != nil {
		logger.Error().Err(err).Msg("Suite selection failed")
		return 2
	}

	store, err := report.OpenResultStore(logger, &config.Storage.Badger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open run archive")
		return 1
	}
	defer store.Close()

	reporter := report.NewReporter(config.Report, logger)
	runner := suite.NewSuiteRunner(config, logger, store, reporter)

	// Cancel the run on Ctrl+C so the browser tears down cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn().Msg("Interrupt received, cancelling run")
		cancel()
	}()

	run, err := runner.Run(ctx, selected)
	if err != nil {
		logger.Error().Err(err).Msg("Suite run failed")
		return 1
	}

	if !run.Succeeded() {
		return 1
	}
	return 0
}

// resolveSuite finds a suite by name among file-defined suites first, then
// the built-ins (file suites may shadow a built-in name deliberately).
func resolveSuite(name string) (suite.Suite, error) {
	loader := suite.NewLoader(config.Suites, logger)
	fileSuites, err := loader.LoadDir()
	if err != nil {
		return suite.Suite{}, err
	}
	if s, ok := fileSuites[name]; ok {
		return s, nil
	}
	return suite.Lookup(name)
}
