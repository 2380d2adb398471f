package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/harness"
	"github.com/ternarybob/specto/internal/report"
	"github.com/ternarybob/specto/pkg/models"
)

// ProgressSink receives live run updates (websocket hub, CLI printer).
type ProgressSink func(event models.ProgressEvent)

// SuiteRunner owns the full lifecycle of a run: browser provisioning,
// sequential scenario execution, archiving and reporting.
type SuiteRunner struct {
	config   *common.Config
	logger   arbor.ILogger
	store    *report.ResultStore
	reporter *report.Reporter
	sinks    []ProgressSink
}

// NewSuiteRunner creates a runner. Store and reporter may be nil for
// ephemeral runs that need neither archive nor artifacts.
func NewSuiteRunner(config *common.Config, logger arbor.ILogger, store *report.ResultStore, reporter *report.Reporter) *SuiteRunner {
	return &SuiteRunner{
		config:   config,
		logger:   logger,
		store:    store,
		reporter: reporter,
	}
}

// OnProgress registers a live update sink.
func (r *SuiteRunner) OnProgress(sink ProgressSink) {
	r.sinks = append(r.sinks, sink)
}

func (r *SuiteRunner) emit(event models.ProgressEvent) {
	event.At = time.Now()
	for _, sink := range r.sinks {
		sink(event)
	}
}

// Run executes every scenario in the suite against the configured target,
// archives the summary and writes the run report. Scenario failures do not
// abort the run; the error return covers harness-level failures only.
func (r *SuiteRunner) Run(ctx context.Context, s Suite) (*models.SuiteRun, error) {
	run := &models.SuiteRun{
		ID:        common.NewRunID(),
		Suite:     s.Name,
		TargetURL: r.config.Target.BaseURL,
		StartedAt: time.Now(),
	}

	r.logger.Info().
		Str("run_id", run.ID).
		Str("suite", s.Name).
		Str("target", run.TargetURL).
		Int("scenarios", len(s.Scenarios)).
		Msg("Starting suite run")
	r.emit(models.ProgressEvent{Type: "run_started", RunID: run.ID, Suite: s.Name})

	browser := harness.NewBrowser(r.config.Browser, r.logger)
	if err := browser.Start(ctx); err != nil {
		return nil, fmt.Errorf("browser startup failed: %w", err)
	}
	defer func() {
		if err := browser.Shutdown(); err != nil {
			r.logger.Warn().Err(err).Msg("Browser shutdown returned an error")
		}
	}()

	timings := harness.TimingsFromConfig(r.config.Harness)
	scenarioRunner := harness.NewRunner(browser, r.config.Target.BaseURL, timings, r.logger)
	scenarioRunner.OnProgress(func(scenario string, phase harness.Phase) {
		r.emit(models.ProgressEvent{
			Type:     "scenario_phase",
			RunID:    run.ID,
			Suite:    s.Name,
			Scenario: scenario,
			Phase:    string(phase),
		})
	})

	var results []harness.ScenarioResult
	for _, scenario := range s.Scenarios {
		if err := ctx.Err(); err != nil {
			r.logger.Warn().Str("run_id", run.ID).Msg("Run cancelled, remaining scenarios not executed")
			break
		}

		result := scenarioRunner.RunScenario(scenario)
		results = append(results, result)

		switch result.Status {
		case harness.StatusPassed:
			run.Passed++
		case harness.StatusSkipped:
			run.Skipped++
		default:
			run.Failed++
		}

		logEvent := r.logger.Info()
		if result.Status == harness.StatusFailed {
			logEvent = r.logger.Warn()
		}
		logEvent.
			Str("run_id", run.ID).
			Str("scenario", result.Name).
			Str("status", string(result.Status)).
			Str("duration", result.Duration.String()).
			Msg("Scenario finished")

		r.emit(models.ProgressEvent{
			Type:     "scenario_phase",
			RunID:    run.ID,
			Suite:    s.Name,
			Scenario: result.Name,
			Phase:    string(harness.PhaseTornDown),
			Status:   string(result.Status),
		})

		run.Scenarios = append(run.Scenarios, models.ScenarioOutcome{
			ID:         result.ID,
			Name:       result.Name,
			Status:     string(result.Status),
			Error:      result.Error,
			Transcript: result.Transcript,
			Duration:   result.Duration,
		})
	}

	run.Duration = time.Since(run.StartedAt)

	if r.reporter != nil {
		path, err := r.reporter.WriteRunReport(run, results)
		if err != nil {
			r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Report writing failed")
		} else {
			run.ReportPath = path
		}
	}

	if r.store != nil {
		if err := r.store.SaveRun(run); err != nil {
			r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Run archiving failed")
		}
		if _, err := r.store.PruneRuns(run.Suite, r.config.Report.KeepLastRun); err != nil {
			r.logger.Warn().Err(err).Str("suite", run.Suite).Msg("Run pruning failed")
		}
	}

	status := "passed"
	if run.Failed > 0 {
		status = "failed"
	}
	r.emit(models.ProgressEvent{Type: "run_finished", RunID: run.ID, Suite: s.Name, Status: status})

	r.logger.Info().
		Str("run_id", run.ID).
		Int("passed", run.Passed).
		Int("failed", run.Failed).
		Int("skipped", run.Skipped).
		Str("duration", run.Duration.String()).
		Msg("Suite run finished")
	return run, nil
}
