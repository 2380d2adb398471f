package ui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specto/internal/harness"
	"github.com/ternarybob/specto/internal/suite"
)

// TestBrokenPageSuite drives the deliberately defective fixture: the
// scenario passes only when the documented exception is observed.
func TestBrokenPageSuite(t *testing.T) {
	c := NewUITestContext(t)
	defer c.Cleanup()

	for _, scenario := range suite.BrokenPageSuite().Scenarios {
		scenario := scenario
		t.Run(scenario.Name, func(t *testing.T) {
			result := c.RunScenario(scenario)
			require.Equal(t, harness.StatusPassed, result.Status, "scenario failed: %s", result.Error)
		})
	}
}

// TestUndeclaredExceptionFailsScenario checks the inverse: the same defect
// fails a scenario that did not declare it. Swallowing page errors would
// defeat the harness.
func TestUndeclaredExceptionFailsScenario(t *testing.T) {
	c := NewUITestContext(t)
	defer c.Cleanup()

	scenario := harness.Scenario{
		Name: "undeclared exception must fail",
		Path: "/broken.html",
		Steps: []harness.Step{
			{
				Name: "trigger the defective handler",
				Action: func(sc *harness.ScenarioContext) error {
					res := sc.ResolveControl(harness.Concept{
						Name:       "run button",
						Candidates: []harness.Candidate{{Selector: "button", Text: "Run"}},
					})
					if !res.Found {
						return sc.Ctx.Err()
					}
					if err := sc.Actions.Click(res.First().Selector); err != nil {
						return err
					}
					sc.Signals.WaitQuiet(sc.Ctx, sc.Timings.SignalGrace, sc.Timings.Step)
					return nil
				},
			},
		},
	}

	result := c.RunScenario(scenario)
	require.Equal(t, harness.StatusFailed, result.Status, "undeclared exception should fail the scenario")
	require.Contains(t, result.Error, "unexpected error signal")
}
