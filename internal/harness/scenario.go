package harness

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specto/internal/common"
)

// Phase is one stage of a scenario execution. No path may skip Finalizing:
// cleanup runs even on assertion failure.
type Phase string

const (
	PhaseProvisioning Phase = "provisioning"
	PhaseNavigating   Phase = "navigating"
	PhaseExecuting    Phase = "executing"
	PhaseFinalizing   Phase = "finalizing"
	PhaseTornDown     Phase = "torn_down"
)

// Status is a scenario's terminal state. Skipped means a prerequisite
// control was legitimately absent from the target page.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Step is one (action, expected observable) pair. Either part may be nil.
type Step struct {
	Name        string
	Action      func(sc *ScenarioContext) error
	Check       Expectation
	WaitSignals bool // drain the signal grace period before the check
}

// Scenario is one independent end-to-end case: an isolated page context, an
// ordered list of steps, and the tolerances that govern them. Not mutated
// by execution; every run produces a fresh ScenarioResult.
type Scenario struct {
	Name            string
	Path            string        // page path relative to the target base URL
	Timeout         time.Duration // hard bound for the whole scenario; 0 uses the configured default
	DefaultDialog   DialogResponse
	Required        *Concept // when set and absent from the page, the scenario is Skipped
	AllowPageErrors bool     // expected-signal scenarios assert errors themselves
	AllowedErrors   []*regexp.Regexp
	Steps           []Step
}

// ScenarioResult is the discarded-after-reporting outcome of one run.
type ScenarioResult struct {
	ID         string
	Name       string
	Status     Status
	Checks     []CheckResult
	Error      string
	Transcript []string // full ordered console/exception/dialog log
	Snapshot   string   // page HTML captured at failure, empty on pass
	StartedAt  time.Time
	Duration   time.Duration
}

// Timings are the scenario-local suspension bounds. Every wait in a run is
// capped by one of these; nothing is unbounded.
type Timings struct {
	Navigation  time.Duration
	Step        time.Duration
	Scenario    time.Duration
	SignalGrace time.Duration
	Poll        time.Duration
	Action      time.Duration
	DragSteps   int
}

// TimingsFromConfig resolves the configured duration strings.
func TimingsFromConfig(cfg common.HarnessConfig) Timings {
	return Timings{
		Navigation:  common.Duration(cfg.NavigationTimeout, 20*time.Second),
		Step:        common.Duration(cfg.StepTimeout, 10*time.Second),
		Scenario:    common.Duration(cfg.ScenarioTimeout, 2*time.Minute),
		SignalGrace: common.Duration(cfg.SignalGrace, 250*time.Millisecond),
		Poll:        common.Duration(cfg.PollInterval, 100*time.Millisecond),
		Action:      common.Duration(cfg.ActionInterval, 50*time.Millisecond),
		DragSteps:   cfg.DragSteps,
	}
}

// ScenarioContext is the per-run surface handed to steps and page objects.
// Exclusively owned by one scenario; never referenced after teardown.
type ScenarioContext struct {
	Ctx     context.Context
	Actions *Actions
	Signals *SignalCollector
	Querier Querier
	State   *CheckState
	Logger  arbor.ILogger
	Timings Timings
}

// Resolve resolves a content-bearing concept against the live page.
func (sc *ScenarioContext) Resolve(concept Concept) Resolution {
	return Resolve(sc.Ctx, sc.Querier, concept)
}

// ResolveControl resolves a form-control concept, tolerating empty values.
func (sc *ScenarioContext) ResolveControl(concept Concept) Resolution {
	return ResolveAny(sc.Ctx, sc.Querier, concept)
}

// CheckEnv builds the observable surface for expectation evaluation.
func (sc *ScenarioContext) CheckEnv() *CheckEnv {
	return &CheckEnv{Ctx: sc.Ctx, Querier: sc.Querier, Signals: sc.Signals, State: sc.State}
}

// PollUntil suspends the scenario until the predicate reports true or the
// bound elapses. Predicates must be idempotent and side-effect free;
// predicate errors are treated as "not yet" so transient DOM churn does not
// abort a wait early.
func (sc *ScenarioContext) PollUntil(name string, timeout time.Duration, predicate func(ctx context.Context) (bool, error)) error {
	if timeout <= 0 {
		timeout = sc.Timings.Step
	}
	deadline := time.Now().Add(timeout)

	for {
		ok, err := predicate(sc.Ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			sc.Logger.Debug().Err(err).Str("wait", name).Msg("Poll predicate errored, retrying")
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("wait %q did not complete within %v", name, timeout)
		}
		select {
		case <-sc.Ctx.Done():
			return fmt.Errorf("wait %q cancelled: %w", name, sc.Ctx.Err())
		case <-time.After(sc.Timings.Poll):
		}
	}
}

// Snapshot captures the page's current HTML for failure diagnostics.
func (sc *ScenarioContext) Snapshot() (string, error) {
	var html string
	if err := chromedp.Run(sc.Ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture snapshot: %w", err)
	}
	return html, nil
}

// ProgressFunc observes phase transitions, for live reporting.
type ProgressFunc func(scenario string, phase Phase)

// Runner executes scenarios against a target. All steps within one scenario
// are strictly sequential; distinct scenarios never share mutable state, so
// callers may run them concurrently at the suite level.
type Runner struct {
	browser  *Browser
	baseURL  string
	timings  Timings
	logger   arbor.ILogger
	progress []ProgressFunc
}

// NewRunner creates a scenario runner bound to a started browser.
func NewRunner(browser *Browser, baseURL string, timings Timings, logger arbor.ILogger) *Runner {
	return &Runner{
		browser: browser,
		baseURL: baseURL,
		timings: timings,
		logger:  logger,
	}
}

// OnProgress registers an observer for phase transitions.
func (r *Runner) OnProgress(fn ProgressFunc) {
	r.progress = append(r.progress, fn)
}

func (r *Runner) notify(scenario string, phase Phase) {
	for _, fn := range r.progress {
		fn(scenario, phase)
	}
}

// RunScenario provisions a fresh page context, installs the signal
// collector before navigation, executes the steps in order, and tears the
// context down whatever the outcome.
func (r *Runner) RunScenario(scenario Scenario) ScenarioResult {
	result := ScenarioResult{
		ID:        common.NewScenarioID(),
		Name:      scenario.Name,
		StartedAt: time.Now(),
	}

	timeout := scenario.Timeout
	if timeout <= 0 {
		timeout = r.timings.Scenario
	}

	r.notify(scenario.Name, PhaseProvisioning)
	ctx, cancel, err := r.browser.NewScenarioContext(timeout)
	if err != nil {
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("provisioning failed: %v", err)
		result.Duration = time.Since(result.StartedAt)
		return result
	}

	collector := NewSignalCollector(r.logger, scenario.DefaultDialog)
	collector.Attach(ctx)

	sc := &ScenarioContext{
		Ctx:     ctx,
		Actions: NewActions(ctx, r.timings.Action, r.timings.DragSteps, r.logger),
		Signals: collector,
		Querier: NewLiveQuerier(ctx),
		State:   NewCheckState(),
		Logger:  r.logger,
		Timings: r.timings,
	}

	// Finalizing always runs: stop in-flight loading best-effort, then close
	// the context, which is the runtime's guarantee that page scripts stop.
	defer func() {
		r.notify(scenario.Name, PhaseFinalizing)
		stopCtx, stopCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := chromedp.Run(stopCtx, page.StopLoading()); err != nil {
			r.logger.Debug().Err(err).Str("scenario", scenario.Name).Msg("Best-effort stop returned")
		}
		stopCancel()
		cancel()
		result.Transcript = collector.Transcript()
		result.Duration = time.Since(result.StartedAt)
		r.notify(scenario.Name, PhaseTornDown)
	}()

	r.notify(scenario.Name, PhaseNavigating)
	if err := sc.Actions.Navigate(r.baseURL+scenario.Path, r.timings.Navigation); err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	if scenario.Required != nil {
		if res := sc.ResolveControl(*scenario.Required); !res.Found {
			r.logger.Info().
				Str("scenario", scenario.Name).
				Str("concept", scenario.Required.Name).
				Msg("Prerequisite control absent, skipping scenario")
			result.Status = StatusSkipped
			result.Error = fmt.Sprintf("prerequisite concept %q absent", scenario.Required.Name)
			return result
		}
	}

	r.notify(scenario.Name, PhaseExecuting)
	for _, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			result.Status = StatusFailed
			result.Error = fmt.Sprintf("scenario timed out at step %q: %v", step.Name, err)
			return result
		}

		if step.Action != nil {
			if err := step.Action(sc); err != nil {
				result.Status = StatusFailed
				result.Error = fmt.Sprintf("step %q action failed: %v", step.Name, err)
				result.Snapshot, _ = sc.Snapshot()
				return result
			}
		}

		if step.Check != nil {
			if step.WaitSignals {
				collector.WaitQuiet(ctx, r.timings.SignalGrace, r.timings.Step)
			}
			check := step.Check.Check(sc.CheckEnv())
			result.Checks = append(result.Checks, check)
			if check.Hard() {
				result.Status = StatusFailed
				result.Error = fmt.Sprintf("step %q: expectation %q %s: %s", step.Name, check.Name, check.Outcome, check.Detail)
				result.Snapshot, _ = sc.Snapshot()
				return result
			}
		}
	}

	if !scenario.AllowPageErrors {
		if unexpected := r.unexpectedErrors(collector, scenario.AllowedErrors); len(unexpected) > 0 {
			result.Status = StatusFailed
			result.Error = fmt.Sprintf("page emitted %d unexpected error signal(s); first: %s", len(unexpected), unexpected[0].Text)
			result.Snapshot, _ = sc.Snapshot()
			return result
		}
	}

	result.Status = StatusPassed
	return result
}

// unexpectedErrors filters error-grade signals the scenario did not declare.
// Swallowing these would defeat the harness's purpose of externally
// observing page correctness.
func (r *Runner) unexpectedErrors(collector *SignalCollector, allowed []*regexp.Regexp) []ObservedEvent {
	var unexpected []ObservedEvent
	for _, ev := range collector.Events() {
		isError := ev.Kind == KindException || (ev.Kind == KindConsole && ev.Level == "error")
		if !isError {
			continue
		}
		tolerated := false
		for _, pattern := range allowed {
			if pattern.MatchString(ev.Text) {
				tolerated = true
				break
			}
		}
		if !tolerated {
			unexpected = append(unexpected, ev)
		}
	}
	return unexpected
}
