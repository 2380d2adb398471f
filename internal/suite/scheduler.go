package suite

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specto/internal/common"
)

// Scheduler re-runs a suite on a cron cadence, for continuously observing a
// deployed target. Overlapping runs are suppressed through the shared run
// gate: if any run is still executing when a tick fires, the tick is
// skipped, whether that run was scheduled or launched on demand.
type Scheduler struct {
	config  common.ScheduleConfig
	runner  *SuiteRunner
	suite   Suite
	cron    *cron.Cron
	gate    *RunGate
	logger  arbor.ILogger
	running bool
}

// NewScheduler creates a scheduler for one suite. The gate must be the same
// instance every other run trigger uses.
func NewScheduler(config common.ScheduleConfig, runner *SuiteRunner, s Suite, gate *RunGate, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		config: config,
		runner: runner,
		suite:  s,
		cron:   cron.New(),
		gate:   gate,
		logger: logger,
	}
}

// Start registers the cron entry and begins ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	expr := s.config.Cron
	if expr == "" {
		expr = "0 * * * *" // Default: hourly
	}

	_, err := s.cron.AddFunc(expr, func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().
		Str("cron_expr", expr).
		Str("suite", s.suite.Name).
		Msg("Scheduled re-runs enabled")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.gate.TryAcquire() {
		s.logger.Warn().Str("suite", s.suite.Name).Msg("Another run still executing, skipping scheduled tick")
		return
	}
	defer s.gate.Release()

	if _, err := s.runner.Run(ctx, s.suite); err != nil {
		s.logger.Error().Err(err).Str("suite", s.suite.Name).Msg("Scheduled run failed")
	}
}

// Stop halts the cron loop, waiting for an in-flight run's cron goroutine.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info().Str("suite", s.suite.Name).Msg("Scheduler stopped")
}
