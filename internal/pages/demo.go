// Package pages holds page objects for the algorithm-visualization demo
// families. Each page object names its UI concepts as ordered fallback
// candidate lists; the pages themselves are independently authored and
// opaque, so nothing here assumes a single fixed markup.
package pages

import (
	"fmt"
	"strings"

	"github.com/ternarybob/specto/internal/harness"
)

// Shared concepts most demo pages expose in some form.
var (
	StatusTextConcept = harness.Concept{
		Name: "status text",
		Candidates: []harness.Candidate{
			{Selector: "#status"},
			{Selector: ".status"},
			{Selector: ".status-text"},
			{Selector: "[data-status]"},
			{Selector: ".message"},
		},
	}

	StatRowConcept = harness.Concept{
		Name: "stat rows",
		Candidates: []harness.Candidate{
			{Selector: ".stat"},
			{Selector: ".stats li"},
			{Selector: ".stats div"},
			{Selector: "[data-stat]"},
		},
	}

	// SizeCounterConcept locates the bare size value the stack and queue
	// demos render inside their stat row, for exact capacity assertions.
	SizeCounterConcept = harness.Concept{
		Name: "size counter",
		Candidates: []harness.Candidate{
			{Selector: "#size"},
			{Selector: ".size"},
			{Selector: "[data-stat=size]"},
		},
	}
)

// DemoPage is the base page object: navigation-free accessors shared by the
// demo families. Scenario navigation is owned by the runner; page objects
// only read and act.
type DemoPage struct {
	SC *harness.ScenarioContext
}

// NewDemoPage binds the base page object to a scenario.
func NewDemoPage(sc *harness.ScenarioContext) *DemoPage {
	return &DemoPage{SC: sc}
}

// StatusText reads the page's status indicator.
func (p *DemoPage) StatusText() (string, bool) {
	res := p.SC.Resolve(StatusTextConcept)
	if !res.Found {
		return "", false
	}
	return strings.TrimSpace(res.First().Text), true
}

// StatValue finds the stat row whose text mentions label and returns its
// first numeric value. Demo pages render stats as "Comparisons: 12",
// "Size: 3 / 10" and similar; the resolver tolerates either shape.
func (p *DemoPage) StatValue(label string) (float64, bool) {
	res := p.SC.Resolve(StatRowConcept)
	if !res.Found {
		return 0, false
	}
	for _, el := range res.Elements {
		if !strings.Contains(strings.ToLower(el.Text), strings.ToLower(label)) {
			continue
		}
		if v, ok := firstNumberAfterLabel(el.Text, label); ok {
			return v, true
		}
	}
	return 0, false
}

// ClickButton activates the first button-like control whose text contains
// name, falling back through common control shapes.
func (p *DemoPage) ClickButton(name string) error {
	concept := harness.Concept{
		Name: fmt.Sprintf("button %q", name),
		Candidates: []harness.Candidate{
			{Selector: "button", Text: name},
			{Selector: "input[type=button]", Attr: "value", AttrValue: name},
			{Selector: "input[type=submit]", Attr: "value", AttrValue: name},
			{Selector: "[role=button]", Text: name},
			{Selector: "a.btn", Text: name},
		},
	}
	res := p.SC.ResolveControl(concept)
	if !res.Found {
		return fmt.Errorf("button %q not found through any candidate", name)
	}
	return p.SC.Actions.Click(res.First().Selector)
}

// firstNumberAfterLabel extracts the first number following the label text,
// so "Size: 3 / 10" with label "Size" yields 3.
func firstNumberAfterLabel(text, label string) (float64, bool) {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(label))
	if idx < 0 {
		return 0, false
	}
	return harness.FirstNumber(text[idx+len(label):])
}
