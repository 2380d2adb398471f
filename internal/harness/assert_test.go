package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specto/internal/common"
)

const assertFixture = `
<html>
<body>
	<div id="status">Sorting complete!</div>
	<div id="error">Cycle detected! Topological sort not possible.</div>
	<div class="stat">Comparisons: <span id="comparisons">12</span></div>
	<div class="stat">Swaps: <span id="swaps">0</span></div>
	<div id="array-container">
		<div class="tile">1</div>
		<div class="tile">3</div>
		<div class="tile">4</div>
	</div>
</body>
</html>`

func checkEnv(t *testing.T, html string) *CheckEnv {
	t.Helper()
	q, err := NewSnapshotQuerier(html)
	require.NoError(t, err)
	return &CheckEnv{
		Ctx:     context.Background(),
		Querier: q,
		Signals: NewSignalCollector(common.GetLogger(), DialogResponse{}),
		State:   NewCheckState(),
	}
}

func statusConcept() Concept {
	return Concept{Name: "status", Candidates: []Candidate{{Selector: "#status"}}}
}

func TestTextExpectationPhrasings(t *testing.T) {
	env := checkEnv(t, assertFixture)

	// Any one matching phrasing passes.
	result := ExpectText("completion", statusConcept(), `(?i)sorted`, `(?i)complete`, `(?i)done`).Check(env)
	assert.Equal(t, OutcomeMatched, result.Outcome)
	assert.False(t, result.Hard())

	result = ExpectText("completion", statusConcept(), `(?i)finished`).Check(env)
	assert.Equal(t, OutcomeMismatched, result.Outcome)
	assert.True(t, result.Hard())
	assert.Contains(t, result.Detail, "Sorting complete!")
}

func TestTextExpectationAbsentConcept(t *testing.T) {
	env := checkEnv(t, assertFixture)
	missing := Concept{Name: "missing", Candidates: []Candidate{{Selector: "#nope"}}}

	result := ExpectText("absent required", missing, `.`).Check(env)
	assert.Equal(t, OutcomeAbsent, result.Outcome)
	assert.True(t, result.Hard(), "absent required observable fails the scenario")

	result = ExpectText("absent optional", missing, `.`).MarkOptional().Check(env)
	assert.Equal(t, OutcomeAbsent, result.Outcome)
	assert.False(t, result.Hard(), "absent optional observable is tolerated")
}

func TestExactTextExpectation(t *testing.T) {
	env := checkEnv(t, assertFixture)
	errConcept := Concept{Name: "error", Candidates: []Candidate{{Selector: "#error"}}}

	result := ExpectExactText("pinned wording", errConcept,
		"Cycle detected! Topological sort not possible.").Check(env)
	assert.Equal(t, OutcomeMatched, result.Outcome)

	result = ExpectExactText("pinned wording", errConcept,
		"Cycle detected.").Check(env)
	assert.Equal(t, OutcomeMismatched, result.Outcome)
}

func TestNumericExpectationBounds(t *testing.T) {
	env := checkEnv(t, assertFixture)
	comparisons := Concept{Name: "comparisons", Candidates: []Candidate{{Selector: ".stat", Text: "Comparisons"}}}

	assert.Equal(t, OutcomeMatched, ExpectAtLeast("some comparisons", comparisons, 1).Check(env).Outcome)
	assert.Equal(t, OutcomeMatched, ExpectAtLeast("exactly met", comparisons, 12).Check(env).Outcome)

	result := ExpectAtLeast("too many wanted", comparisons, 13).Check(env)
	assert.Equal(t, OutcomeMismatched, result.Outcome)
	assert.Contains(t, result.Detail, "want >= 13")
}

func TestNumericExpectationNoNumber(t *testing.T) {
	env := checkEnv(t, assertFixture)
	// #status renders text with no numeric token.
	result := ExpectAtLeast("not a counter", statusConcept(), 1).Check(env)
	assert.Equal(t, OutcomeMismatched, result.Outcome)
}

func TestMonotonicExpectation(t *testing.T) {
	comparisons := Concept{Name: "comparisons", Candidates: []Candidate{{Selector: "#comparisons"}}}
	e := ExpectMonotonic("comparison counter", comparisons)
	state := NewCheckState()

	first := checkEnv(t, `<html><body><span id="comparisons">5</span></body></html>`)
	first.State = state
	assert.Equal(t, OutcomeMatched, e.Check(first).Outcome)

	higher := checkEnv(t, `<html><body><span id="comparisons">9</span></body></html>`)
	higher.State = state
	assert.Equal(t, OutcomeMatched, e.Check(higher).Outcome)

	lower := checkEnv(t, `<html><body><span id="comparisons">3</span></body></html>`)
	lower.State = state
	result := e.Check(lower)
	assert.Equal(t, OutcomeMismatched, result.Outcome)
	assert.Contains(t, result.Detail, "counter decreased")
}

func TestMonotonicStateScopedToExecution(t *testing.T) {
	comparisons := Concept{Name: "comparisons", Candidates: []Candidate{{Selector: "#comparisons"}}}
	// Suite definitions are shared across runs, so one expectation instance
	// is checked against many executions.
	e := ExpectMonotonic("comparison counter", comparisons)

	first := checkEnv(t, `<html><body><span id="comparisons">9</span></body></html>`)
	assert.Equal(t, OutcomeMatched, e.Check(first).Outcome)

	// A fresh execution carries fresh state: a lower value is not a
	// decrease, it is a new counter.
	fresh := checkEnv(t, `<html><body><span id="comparisons">3</span></body></html>`)
	result := e.Check(fresh)
	assert.Equal(t, OutcomeMatched, result.Outcome, "state must not leak between executions")
}

func TestCountExpectation(t *testing.T) {
	env := checkEnv(t, assertFixture)
	tiles := Concept{Name: "tiles", Candidates: []Candidate{{Selector: ".tile"}}}

	assert.Equal(t, OutcomeMatched, ExpectCount("three tiles", tiles, 3).Check(env).Outcome)
	assert.Equal(t, OutcomeMismatched, ExpectCount("four tiles", tiles, 4).Check(env).Outcome)

	missing := Concept{Name: "rows", Candidates: []Candidate{{Selector: ".row"}}}
	assert.Equal(t, OutcomeAbsent, ExpectCount("no rows", missing, 1).Check(env).Outcome)
}

func TestSignalExpectation(t *testing.T) {
	env := checkEnv(t, assertFixture)
	env.Signals.append(ObservedEvent{Kind: KindConsole, Level: "warning", Text: "Overflow: stack is at capacity (1)"})
	env.Signals.append(ObservedEvent{Kind: KindConsole, Level: "log", Text: "pushed 7"})
	env.Signals.append(ObservedEvent{Kind: KindException, Text: "ReferenceError: undefinedFunction is not defined"})

	assert.Equal(t, OutcomeMatched, ExpectConsole("overflow", "warning", `Overflow`, 1).Check(env).Outcome)
	assert.Equal(t, OutcomeAbsent, ExpectConsole("overflow at error level", "error", `Overflow`, 1).Check(env).Outcome,
		"level filter must exclude warnings")
	assert.Equal(t, OutcomeMismatched, ExpectConsole("two overflows", "warning", `Overflow`, 2).Check(env).Outcome)

	assert.Equal(t, OutcomeMatched, ExpectException("documented defect", `is not defined`).Check(env).Outcome)
	assert.Equal(t, OutcomeAbsent, ExpectException("other defect", `null is not an object`).Check(env).Outcome)
}

func TestForbidException(t *testing.T) {
	clean := checkEnv(t, assertFixture)
	assert.Equal(t, OutcomeMatched, ForbidException("no errors", `.`).Check(clean).Outcome)

	dirty := checkEnv(t, assertFixture)
	dirty.Signals.append(ObservedEvent{Kind: KindException, Text: "TypeError: boom"})
	result := ForbidException("no errors", `.`).Check(dirty)
	assert.Equal(t, OutcomeMismatched, result.Outcome)
	assert.True(t, result.Hard())
}

func TestDialogExpectation(t *testing.T) {
	env := checkEnv(t, assertFixture)
	env.Signals.takeResponse(alertEvent("The queue is full! Dequeue an item before adding more."))

	assert.Equal(t, OutcomeMatched, ExpectDialog("full queue", `queue is full`).Check(env).Outcome)
	assert.Equal(t, OutcomeMatched, ExpectDialog("case folded", `QUEUE IS FULL`).Check(env).Outcome,
		"dialog patterns are case-insensitive")
	assert.Equal(t, OutcomeAbsent, ExpectDialog("other dialog", `stack is empty`).Check(env).Outcome)
}

func TestFirstNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"Comparisons: 12", 12, true},
		{"Size: 3 / 10", 3, true},
		{"-4.5 remaining", -4.5, true},
		{"no digits here", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := FirstNumber(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
