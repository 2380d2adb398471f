package ui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specto/internal/harness"
	"github.com/ternarybob/specto/internal/suite"
)

// TestQueueSuite drives the queue fixture: enqueue rendering and the
// full-queue alert dialog, auto-accepted and recorded by the collector.
func TestQueueSuite(t *testing.T) {
	c := NewUITestContext(t)
	defer c.Cleanup()

	for _, scenario := range suite.QueueSuite().Scenarios {
		scenario := scenario
		t.Run(scenario.Name, func(t *testing.T) {
			result := c.RunScenario(scenario)
			require.Equal(t, harness.StatusPassed, result.Status, "scenario failed: %s", result.Error)
		})
	}
}

// TestQueueDequeueShrinksQueue enqueues two values, dequeues one, and
// checks the rendered count.
func TestQueueDequeueShrinksQueue(t *testing.T) {
	c := NewUITestContext(t)
	defer c.Cleanup()

	itemConcept := harness.Concept{
		Name:       "queue items",
		Candidates: []harness.Candidate{{Selector: ".queue-item"}},
	}

	scenario := harness.Scenario{
		Name: "dequeue removes the oldest item",
		Path: "/queue.html",
		Steps: []harness.Step{
			{
				Name: "enqueue two values",
				Action: func(sc *harness.ScenarioContext) error {
					for _, value := range []string{"first", "second"} {
						if err := sc.Actions.SetValue("#enqueueInput", value); err != nil {
							return err
						}
						res := sc.ResolveControl(harness.Concept{
							Name:       "enqueue button",
							Candidates: []harness.Candidate{{Selector: "button", Text: "Enqueue"}},
						})
						if !res.Found {
							return sc.Ctx.Err()
						}
						if err := sc.Actions.Click(res.First().Selector); err != nil {
							return err
						}
					}
					return nil
				},
				Check: harness.ExpectCount("two items rendered", itemConcept, 2),
			},
			{
				Name: "dequeue one",
				Action: func(sc *harness.ScenarioContext) error {
					res := sc.ResolveControl(harness.Concept{
						Name:       "dequeue button",
						Candidates: []harness.Candidate{{Selector: "button", Text: "Dequeue"}},
					})
					if !res.Found {
						return sc.Ctx.Err()
					}
					return sc.Actions.Click(res.First().Selector)
				},
				Check: harness.ExpectText("dequeue status", harness.Concept{
					Name:       "status",
					Candidates: []harness.Candidate{{Selector: "#status"}},
				}, `Dequeued first`),
			},
		},
	}

	result := c.RunScenario(scenario)
	require.Equal(t, harness.StatusPassed, result.Status, "scenario failed: %s", result.Error)
}
