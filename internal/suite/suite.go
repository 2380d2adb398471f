package suite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/specto/internal/harness"
	"github.com/ternarybob/specto/internal/pages"
)

// Suite is a named, ordered collection of independent scenarios. Order is
// fixed for reporting; isolation means it carries no correctness weight.
type Suite struct {
	Name      string
	Scenarios []harness.Scenario
}

// ComparisonCounterConcept locates the comparison counter sorting demos
// render while animating.
var ComparisonCounterConcept = harness.Concept{
	Name: "comparison counter",
	Candidates: []harness.Candidate{
		{Selector: "#comparisons"},
		{Selector: ".comparisons"},
		{Selector: "[data-stat=comparisons]"},
	},
}

// Builtin returns the suites the harness ships with, keyed by name. These
// target the demo page families directly; file-defined suites come from the
// loader instead.
func Builtin() map[string]Suite {
	suites := map[string]Suite{
		"sorting":  SortingSuite(),
		"stack":    StackSuite(),
		"queue":    QueueSuite(),
		"toposort": TopoSortSuite(),
		"broken":   BrokenPageSuite(),
	}

	var all []harness.Scenario
	names := make([]string, 0, len(suites))
	for name := range suites {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		all = append(all, suites[name].Scenarios...)
	}
	suites["all"] = Suite{Name: "all", Scenarios: all}

	return suites
}

// SortingSuite exercises the sorting visualizer: custom input, tile
// rendering, completion status and the monotonic comparison counter.
func SortingSuite() Suite {
	return Suite{
		Name: "sorting",
		Scenarios: []harness.Scenario{
			{
				Name:     "sorting renders a custom array",
				Path:     "/sorting.html",
				Required: &pages.ArrayInputConcept,
				Steps: []harness.Step{
					{
						Name: "enter custom array",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewSortingPage(sc)
							if err := p.EnterArray("9,1,4,7"); err != nil {
								return err
							}
							if err := p.Apply(); err != nil {
								return err
							}
							return p.WaitForTiles(4)
						},
						Check: harness.ExpectCount("tiles rendered", pages.TileConcept, 4),
					},
					{
						Name: "tiles carry the entered values",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewSortingPage(sc)
							for _, value := range []string{"9", "1", "4", "7"} {
								ok, err := p.TilesContain(value)
								if err != nil {
									return err
								}
								if !ok {
									return fmt.Errorf("value %s missing from rendered tiles", value)
								}
							}
							return nil
						},
					},
				},
			},
			{
				Name:     "sorting completes in ascending order",
				Path:     "/sorting.html",
				Required: &pages.ArrayInputConcept,
				Steps: []harness.Step{
					{
						Name: "prepare array at full speed",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewSortingPage(sc)
							if err := p.EnterArray("9,1,4,7"); err != nil {
								return err
							}
							if err := p.Apply(); err != nil {
								return err
							}
							if err := p.SetSpeed("100"); err != nil {
								sc.Logger.Debug().Err(err).Msg("Speed slider absent, continuing at default speed")
							}
							return p.WaitForTiles(4)
						},
					},
					{
						Name: "run the sort to completion",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewSortingPage(sc)
							if err := p.Sort(); err != nil {
								return err
							}
							done := harness.Phrasings(`(?i)sorted`, `(?i)done`, `(?i)complete`)
							return sc.PollUntil("array sorted", 0, func(ctx context.Context) (bool, error) {
								texts, err := p.TileTexts()
								if err != nil {
									return false, err
								}
								if !tilesAscending(texts) {
									return false, nil
								}
								// Wait out the animation: the page must also
								// report completion, when it has a status at all.
								status, ok := p.StatusText()
								if !ok {
									return true, nil
								}
								for _, pattern := range done {
									if pattern.MatchString(status) {
										return true, nil
									}
								}
								return false, nil
							})
						},
						Check:       harness.ExpectText("completion status", pages.StatusTextConcept, `(?i)sorted`, `(?i)done`, `(?i)complete`),
						WaitSignals: true,
					},
					{
						Name:  "comparison counter advanced",
						Check: harness.ExpectAtLeast("comparison counter", ComparisonCounterConcept, 1),
					},
				},
			},
		},
	}
}

// tilesAscending reports whether the numeric tile values are sorted.
func tilesAscending(texts []string) bool {
	var values []float64
	for _, text := range texts {
		v, ok := harness.FirstNumber(text)
		if !ok {
			return false
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return false
	}
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}

// StackSuite exercises the stack visualizer, including the capacity-one
// overflow page whose warning is asserted, not swallowed.
func StackSuite() Suite {
	return Suite{
		Name: "stack",
		Scenarios: []harness.Scenario{
			{
				Name:     "stack push renders an item",
				Path:     "/stack.html",
				Required: &pages.StackValueInputConcept,
				Steps: []harness.Step{
					{
						Name: "push a value",
						Action: func(sc *harness.ScenarioContext) error {
							return pages.NewStackPage(sc).Push("42")
						},
						Check: harness.ExpectCount("stack items", pages.StackItemConcept, 1),
					},
					{
						Name:  "size stat reflects the push",
						Check: harness.ExpectAtLeast("stack size", pages.StatRowConcept, 1).MarkOptional(),
					},
				},
			},
			{
				Name:     "stack overflow emits a warning",
				Path:     "/stack.html",
				Required: &pages.StackValueInputConcept,
				Steps: []harness.Step{
					{
						Name: "push beyond capacity",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewStackPage(sc)
							if err := p.Push("1"); err != nil {
								return err
							}
							return p.Push("2")
						},
						Check:       harness.ExpectConsole("overflow warning", "warning", `Overflow`, 1),
						WaitSignals: true,
					},
					{
						// The rejected push must not grow the stack.
						Name:  "size stays at capacity",
						Check: harness.ExpectExactText("stack size after overflow", pages.SizeCounterConcept, "1"),
					},
				},
			},
			{
				Name:     "stack pop removes the top item",
				Path:     "/stack.html",
				Required: &pages.StackValueInputConcept,
				Steps: []harness.Step{
					{
						Name: "push then pop",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewStackPage(sc)
							if err := p.Push("7"); err != nil {
								return err
							}
							return p.Pop()
						},
						Check: harness.ExpectText("status after pop", pages.StatusTextConcept, `(?i)pop`, `(?i)removed`, `(?i)empty`).MarkOptional(),
					},
				},
			},
		},
	}
}

// QueueSuite exercises the queue visualizer, including the full-queue alert
// dialog which the collector auto-accepts and records.
func QueueSuite() Suite {
	return Suite{
		Name: "queue",
		Scenarios: []harness.Scenario{
			{
				Name:     "queue enqueue renders an item",
				Path:     "/queue.html",
				Required: &pages.QueueValueInputConcept,
				Steps: []harness.Step{
					{
						Name: "enqueue a value",
						Action: func(sc *harness.ScenarioContext) error {
							return pages.NewQueuePage(sc).Enqueue("alpha")
						},
						Check: harness.ExpectCount("queue items", pages.QueueItemConcept, 1),
					},
				},
			},
			{
				Name:          "queue raises a dialog when full",
				Path:          "/queue.html",
				Required:      &pages.QueueValueInputConcept,
				DefaultDialog: harness.DialogResponse{Accept: true},
				Steps: []harness.Step{
					{
						Name: "fill the queue past capacity",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewQueuePage(sc)
							for i := 0; i < 11; i++ {
								if err := p.Enqueue(fmt.Sprintf("item-%d", i)); err != nil {
									return err
								}
							}
							return nil
						},
						Check:       harness.ExpectDialog("full-queue alert", `queue is full`),
						WaitSignals: true,
					},
					{
						// The rejected enqueue must not grow the queue.
						Name:  "size stays at capacity",
						Check: harness.ExpectExactText("queue size after rejection", pages.SizeCounterConcept, "10"),
					},
				},
			},
		},
	}
}

// TopoSortSuite exercises the topological sort demo, including the pinned
// cycle-detection wording its error region renders.
func TopoSortSuite() Suite {
	return Suite{
		Name: "toposort",
		Scenarios: []harness.Scenario{
			{
				Name:     "toposort resolves a linear dependency chain",
				Path:     "/toposort.html",
				Required: &pages.EdgeListConcept,
				Steps: []harness.Step{
					{
						Name: "sort a chain",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewTopoSortPage(sc)
							if err := p.EnterEdges("A -> B\nB -> C"); err != nil {
								return err
							}
							return p.Run()
						},
						Check: harness.ExpectText("linear order", pages.TopoOutputConcept, `A.*B.*C`),
					},
				},
			},
			{
				Name:     "toposort reports a cycle with fixed wording",
				Path:     "/toposort.html",
				Required: &pages.EdgeListConcept,
				Steps: []harness.Step{
					{
						Name: "sort a cyclic graph",
						Action: func(sc *harness.ScenarioContext) error {
							p := pages.NewTopoSortPage(sc)
							if err := p.EnterEdges("A -> B\nB -> C\nC -> A"); err != nil {
								return err
							}
							return p.Run()
						},
						Check: harness.ExpectExactText("cycle error", pages.TopoErrorConcept, "Cycle detected! Topological sort not possible."),
					},
					{
						// Three nodes, so the listed path must span more than
						// one hop.
						Name:  "cycle path is listed",
						Check: harness.ExpectText("cycle path", pages.TopoOutputConcept, `Cycle path:.*->.*->`),
					},
				},
			},
		},
	}
}

// BrokenPageSuite documents a page whose defect is the expected observable:
// the exception must be captured and asserted, never suppressed.
func BrokenPageSuite() Suite {
	return Suite{
		Name: "broken",
		Scenarios: []harness.Scenario{
			{
				Name:            "broken page throws the documented exception",
				Path:            "/broken.html",
				AllowPageErrors: true,
				Steps: []harness.Step{
					{
						Name: "trigger the defective handler",
						Action: func(sc *harness.ScenarioContext) error {
							return pages.NewDemoPage(sc).ClickButton("Run")
						},
						Check:       harness.ExpectException("documented defect", `is not defined`),
						WaitSignals: true,
					},
				},
			},
		},
	}
}

// Names lists the available built-in suite names, sorted.
func Names() []string {
	suites := Builtin()
	names := make([]string, 0, len(suites))
	for name := range suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a comma-separated suite selection into one merged suite.
func Lookup(selection string) (Suite, error) {
	suites := Builtin()
	parts := strings.Split(selection, ",")

	if len(parts) == 1 {
		s, ok := suites[strings.TrimSpace(parts[0])]
		if !ok {
			return Suite{}, fmt.Errorf("unknown suite %q (available: %s)", parts[0], strings.Join(Names(), ", "))
		}
		return s, nil
	}

	merged := Suite{Name: selection}
	for _, part := range parts {
		s, ok := suites[strings.TrimSpace(part)]
		if !ok {
			return Suite{}, fmt.Errorf("unknown suite %q (available: %s)", part, strings.Join(Names(), ", "))
		}
		merged.Scenarios = append(merged.Scenarios, s.Scenarios...)
	}
	return merged, nil
}
