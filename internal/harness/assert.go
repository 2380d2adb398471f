package harness

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Outcome classifies one expectation check. Mismatched is always a hard
// failure; Absent is a hard failure unless the expectation was marked
// optional by its scenario.
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeMismatched Outcome = "mismatched"
	OutcomeAbsent     Outcome = "absent"
)

// CheckResult is the verdict for one expectation, with a human-readable
// diagnostic naming what was observed.
type CheckResult struct {
	Name     string
	Outcome  Outcome
	Optional bool
	Detail   string
}

// Hard reports whether this result fails its scenario.
func (r CheckResult) Hard() bool {
	switch r.Outcome {
	case OutcomeMismatched:
		return true
	case OutcomeAbsent:
		return !r.Optional
	default:
		return false
	}
}

// CheckEnv is the observable surface an expectation evaluates against.
// State is scoped to one scenario execution; expectations themselves carry
// no mutable state, so suite definitions are safely reused across runs.
type CheckEnv struct {
	Ctx     context.Context
	Querier Querier
	Signals *SignalCollector
	State   *CheckState
}

// CheckState holds per-execution expectation memory, keyed by expectation
// identity. Monotonic counters record their last observed value here.
type CheckState struct {
	mu   sync.Mutex
	last map[Expectation]float64
}

// NewCheckState creates empty per-scenario expectation state.
func NewCheckState() *CheckState {
	return &CheckState{last: make(map[Expectation]float64)}
}

func (s *CheckState) previous(e Expectation) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.last[e]
	return v, ok
}

func (s *CheckState) record(e Expectation, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[e] = v
}

// Expectation is one expected observable. Implementations must be tolerant
// of legitimate phrasing variance in independently-authored pages: prefer
// regexp alternatives over literal strings and inequality bounds over exact
// numeric equality wherever page timing is not deterministic.
type Expectation interface {
	Name() string
	Check(env *CheckEnv) CheckResult
}

// Phrasings compiles a set of tolerated phrasings. Expectation patterns are
// authored constants, so compile failures panic at construction.
func Phrasings(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(expr)
	}
	return patterns
}

// TextExpectation checks the rendered text of a concept against tolerated
// phrasings (any element matching any pattern passes). With Exact set the
// whitespace-trimmed text of some element must equal it literally.
type TextExpectation struct {
	Label    string
	Concept  Concept
	Patterns []*regexp.Regexp
	Exact    string
	Opt      bool
}

// ExpectText builds a phrasing-tolerant text expectation.
func ExpectText(label string, concept Concept, phrasings ...string) *TextExpectation {
	return &TextExpectation{Label: label, Concept: concept, Patterns: Phrasings(phrasings...)}
}

// ExpectExactText builds an exact-match text expectation, for pages whose
// vocabulary is pinned (dedicated error regions with fixed wording).
func ExpectExactText(label string, concept Concept, literal string) *TextExpectation {
	return &TextExpectation{Label: label, Concept: concept, Exact: literal}
}

// MarkOptional flags the observable as legitimately absent on some pages.
func (e *TextExpectation) MarkOptional() *TextExpectation {
	e.Opt = true
	return e
}

func (e *TextExpectation) Name() string { return e.Label }

func (e *TextExpectation) Check(env *CheckEnv) CheckResult {
	res := Resolve(env.Ctx, env.Querier, e.Concept)
	if !res.Found {
		return CheckResult{
			Name:     e.Label,
			Outcome:  OutcomeAbsent,
			Optional: e.Opt,
			Detail:   fmt.Sprintf("concept %q not found through any candidate", e.Concept.Name),
		}
	}

	for _, text := range res.Texts() {
		if e.Exact != "" {
			if strings.TrimSpace(text) == e.Exact {
				return CheckResult{Name: e.Label, Outcome: OutcomeMatched, Detail: fmt.Sprintf("observed %q", e.Exact)}
			}
			continue
		}
		for _, pattern := range e.Patterns {
			if pattern.MatchString(text) {
				return CheckResult{Name: e.Label, Outcome: OutcomeMatched, Detail: fmt.Sprintf("observed %q", strings.TrimSpace(text))}
			}
		}
	}

	return CheckResult{
		Name:     e.Label,
		Outcome:  OutcomeMismatched,
		Optional: e.Opt,
		Detail:   fmt.Sprintf("concept %q present but no phrasing matched; observed %q", e.Concept.Name, strings.Join(res.Texts(), " | ")),
	}
}

// NumericExpectation checks a counter-like observable with inequality
// bounds. Monotonic additionally requires non-decrease across successive
// checks within one scenario execution (autoplay progress); the last seen
// value lives in the CheckEnv state, never in the expectation itself.
type NumericExpectation struct {
	Label     string
	Concept   Concept
	Min       float64
	Monotonic bool
	Opt       bool
}

// ExpectAtLeast builds a >= bound on the first number rendered by a concept.
func ExpectAtLeast(label string, concept Concept, min float64) *NumericExpectation {
	return &NumericExpectation{Label: label, Concept: concept, Min: min}
}

// ExpectMonotonic builds a non-decreasing counter check with a >= 0 floor.
func ExpectMonotonic(label string, concept Concept) *NumericExpectation {
	return &NumericExpectation{Label: label, Concept: concept, Min: 0, Monotonic: true}
}

// MarkOptional flags the observable as legitimately absent on some pages.
func (e *NumericExpectation) MarkOptional() *NumericExpectation {
	e.Opt = true
	return e
}

func (e *NumericExpectation) Name() string { return e.Label }

func (e *NumericExpectation) Check(env *CheckEnv) CheckResult {
	res := Resolve(env.Ctx, env.Querier, e.Concept)
	if !res.Found {
		return CheckResult{
			Name:     e.Label,
			Outcome:  OutcomeAbsent,
			Optional: e.Opt,
			Detail:   fmt.Sprintf("concept %q not found through any candidate", e.Concept.Name),
		}
	}

	value, ok := firstNumber(res.First().Text)
	if !ok {
		return CheckResult{
			Name:     e.Label,
			Outcome:  OutcomeMismatched,
			Optional: e.Opt,
			Detail:   fmt.Sprintf("no numeric value in %q", res.First().Text),
		}
	}

	if value < e.Min {
		return CheckResult{
			Name:    e.Label,
			Outcome: OutcomeMismatched,
			Detail:  fmt.Sprintf("observed %v, want >= %v", value, e.Min),
		}
	}

	if e.Monotonic && env.State != nil {
		if last, ok := env.State.previous(e); ok && value < last {
			return CheckResult{
				Name:    e.Label,
				Outcome: OutcomeMismatched,
				Detail:  fmt.Sprintf("counter decreased: %v after %v", value, last),
			}
		}
		env.State.record(e, value)
	}

	return CheckResult{Name: e.Label, Outcome: OutcomeMatched, Detail: fmt.Sprintf("observed %v", value)}
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// FirstNumber extracts the first numeric token rendered in s. Page objects
// use it for stat rows that mix labels and values.
func FirstNumber(s string) (float64, bool) {
	return firstNumber(s)
}

func firstNumber(s string) (float64, bool) {
	match := numberPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CountExpectation requires a concept to resolve to at least MinCount
// elements (tile sequences, rendered list entries).
type CountExpectation struct {
	Label    string
	Concept  Concept
	MinCount int
	Opt      bool
}

// ExpectCount builds a >= bound on the number of elements a concept yields.
func ExpectCount(label string, concept Concept, min int) *CountExpectation {
	return &CountExpectation{Label: label, Concept: concept, MinCount: min}
}

func (e *CountExpectation) Name() string { return e.Label }

func (e *CountExpectation) Check(env *CheckEnv) CheckResult {
	res := Resolve(env.Ctx, env.Querier, e.Concept)
	if !res.Found {
		return CheckResult{
			Name:     e.Label,
			Outcome:  OutcomeAbsent,
			Optional: e.Opt,
			Detail:   fmt.Sprintf("concept %q not found through any candidate", e.Concept.Name),
		}
	}
	if len(res.Elements) < e.MinCount {
		return CheckResult{
			Name:    e.Label,
			Outcome: OutcomeMismatched,
			Detail:  fmt.Sprintf("observed %d elements, want >= %d", len(res.Elements), e.MinCount),
		}
	}
	return CheckResult{Name: e.Label, Outcome: OutcomeMatched, Detail: fmt.Sprintf("observed %d elements", len(res.Elements))}
}

// SignalExpectation checks the captured signal log. With Forbid false, zero
// matching signals is a hard Absent (a required signal that never arrived
// must not pass silently). With Forbid true the expectation inverts: any
// matching signal is a Mismatched failure.
type SignalExpectation struct {
	Label    string
	Kind     EventKind
	Level    string // console severity filter, empty for any
	Pattern  *regexp.Regexp
	MinCount int
	Forbid   bool
}

// ExpectConsole requires at least min console entries of the given severity
// matching the pattern.
func ExpectConsole(label, level, pattern string, min int) *SignalExpectation {
	return &SignalExpectation{
		Label:    label,
		Kind:     KindConsole,
		Level:    level,
		Pattern:  regexp.MustCompile(pattern),
		MinCount: min,
	}
}

// ExpectException requires an uncaught page exception matching the pattern.
// Used for scenarios documenting pre-existing bugs in a target page: there,
// absence of the signal is the failure.
func ExpectException(label, pattern string) *SignalExpectation {
	return &SignalExpectation{
		Label:    label,
		Kind:     KindException,
		Pattern:  regexp.MustCompile(pattern),
		MinCount: 1,
	}
}

// ForbidException fails the scenario if any exception matches the pattern.
func ForbidException(label, pattern string) *SignalExpectation {
	return &SignalExpectation{
		Label:   label,
		Kind:    KindException,
		Pattern: regexp.MustCompile(pattern),
		Forbid:  true,
	}
}

func (e *SignalExpectation) Name() string { return e.Label }

func (e *SignalExpectation) Check(env *CheckEnv) CheckResult {
	count := env.Signals.CountEvents(e.Kind, e.Level, e.Pattern)

	if e.Forbid {
		if count > 0 {
			return CheckResult{
				Name:    e.Label,
				Outcome: OutcomeMismatched,
				Detail:  fmt.Sprintf("%d forbidden %s signal(s) observed", count, e.Kind),
			}
		}
		return CheckResult{Name: e.Label, Outcome: OutcomeMatched, Detail: "no forbidden signals"}
	}

	min := e.MinCount
	if min <= 0 {
		min = 1
	}
	if count == 0 {
		return CheckResult{
			Name:    e.Label,
			Outcome: OutcomeAbsent,
			Detail:  fmt.Sprintf("no %s signal matched %s", e.Kind, e.Pattern),
		}
	}
	if count < min {
		return CheckResult{
			Name:    e.Label,
			Outcome: OutcomeMismatched,
			Detail:  fmt.Sprintf("observed %d matching %s signal(s), want >= %d", count, e.Kind, min),
		}
	}
	return CheckResult{Name: e.Label, Outcome: OutcomeMatched, Detail: fmt.Sprintf("observed %d matching signal(s)", count)}
}

// DialogExpectation requires a native dialog whose message matches the
// pattern (compiled case-insensitive: dialog copy varies across pages).
type DialogExpectation struct {
	Label    string
	Pattern  *regexp.Regexp
	MinCount int
}

// ExpectDialog requires at least one dialog whose message matches pattern.
func ExpectDialog(label, pattern string) *DialogExpectation {
	return &DialogExpectation{
		Label:    label,
		Pattern:  regexp.MustCompile("(?i)" + pattern),
		MinCount: 1,
	}
}

func (e *DialogExpectation) Name() string { return e.Label }

func (e *DialogExpectation) Check(env *CheckEnv) CheckResult {
	count := env.Signals.CountDialogs(e.Pattern)
	if count == 0 {
		return CheckResult{
			Name:    e.Label,
			Outcome: OutcomeAbsent,
			Detail:  fmt.Sprintf("no dialog matched %s", e.Pattern),
		}
	}
	if count < e.MinCount {
		return CheckResult{
			Name:    e.Label,
			Outcome: OutcomeMismatched,
			Detail:  fmt.Sprintf("observed %d matching dialog(s), want >= %d", count, e.MinCount),
		}
	}
	return CheckResult{Name: e.Label, Outcome: OutcomeMatched, Detail: fmt.Sprintf("observed %d matching dialog(s)", count)}
}
