// uitest_context.go - shared UI test context: fixture server, browser and
// scenario runner, with LIFO cleanup.
// NOTE: This is NOT a test file - it contains shared test infrastructure.

package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/harness"
)

// UITestContext holds shared state for UI tests.
type UITestContext struct {
	T       *testing.T
	Env     *TestEnvironment
	Browser *harness.Browser
	Runner  *harness.Runner

	cleanup []func()
}

// NewUITestContext starts the fixture server and a headless browser, and
// skips the test when no Chrome binary is available.
func NewUITestContext(t *testing.T) *UITestContext {
	t.Helper()

	if !browserAvailable() {
		t.Skip("no Chrome binary on PATH, skipping UI test")
	}

	env, err := SetupTestEnvironment(t.Name())
	if err != nil {
		t.Fatalf("failed to set up test environment: %v", err)
	}

	c := &UITestContext{T: t, Env: env}
	c.addCleanup(env.Cleanup)

	config := common.NewDefaultConfig()
	config.Target.BaseURL = env.BaseURL
	config.Browser.Headless = true
	config.Browser.NoSandbox = true
	config.Harness.ScenarioTimeout = "60s"
	config.Harness.StepTimeout = "15s"

	logger := common.GetLogger()
	browser := harness.NewBrowser(config.Browser, logger)

	startCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	if err := browser.Start(startCtx); err != nil {
		c.Cleanup()
		t.Fatalf("failed to start browser: %v", err)
	}
	c.Browser = browser
	c.addCleanup(func() { browser.Shutdown() })

	timings := harness.TimingsFromConfig(config.Harness)
	c.Runner = harness.NewRunner(browser, env.BaseURL, timings, logger)

	return c
}

func (c *UITestContext) addCleanup(fn func()) {
	c.cleanup = append(c.cleanup, fn)
}

// Cleanup releases resources in reverse registration order.
func (c *UITestContext) Cleanup() {
	for i := len(c.cleanup) - 1; i >= 0; i-- {
		c.cleanup[i]()
	}
	c.cleanup = nil
}

// RunScenario executes one scenario and records its transcript in the test
// log for post-mortem reading.
func (c *UITestContext) RunScenario(s harness.Scenario) harness.ScenarioResult {
	c.T.Helper()

	c.Env.LogTest(c.T, "running scenario %q", s.Name)
	result := c.Runner.RunScenario(s)
	c.Env.LogTest(c.T, "scenario %q finished: %s (%s)", s.Name, result.Status, result.Duration)
	if result.Error != "" {
		c.Env.LogTest(c.T, "scenario error: %s", result.Error)
	}
	if len(result.Transcript) > 0 {
		c.Env.LogTest(c.T, "transcript:\n%s", strings.Join(result.Transcript, "\n"))
	}
	return result
}
