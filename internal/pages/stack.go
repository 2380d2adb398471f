package pages

import (
	"fmt"

	"github.com/ternarybob/specto/internal/harness"
)

// Concepts for the stack demo family.
var (
	StackValueInputConcept = harness.Concept{
		Name: "stack value input",
		Candidates: []harness.Candidate{
			{Selector: "#valueInput"},
			{Selector: "input[name=value]"},
			{Selector: ".push-controls input"},
			{Selector: "input[type=text]"},
		},
	}

	StackItemConcept = harness.Concept{
		Name: "stack items",
		Candidates: []harness.Candidate{
			{Selector: ".stack-item"},
			{Selector: "#stack > div"},
			{Selector: ".stack li"},
		},
	}
)

// StackPage drives a stack visualizer.
type StackPage struct {
	DemoPage
}

// NewStackPage binds a stack page object to a scenario.
func NewStackPage(sc *harness.ScenarioContext) *StackPage {
	return &StackPage{DemoPage{SC: sc}}
}

// Push enters a value and activates the push control.
func (p *StackPage) Push(value string) error {
	res := p.SC.ResolveControl(StackValueInputConcept)
	if !res.Found {
		return fmt.Errorf("stack value input not found through any candidate")
	}
	if err := p.SC.Actions.SetValue(res.First().Selector, value); err != nil {
		return err
	}
	return p.ClickButton("Push")
}

// Pop activates the pop control.
func (p *StackPage) Pop() error {
	return p.ClickButton("Pop")
}

// Size reads the stack's reported size stat.
func (p *StackPage) Size() (float64, bool) {
	return p.StatValue("Size")
}

// ItemCount counts the rendered stack items.
func (p *StackPage) ItemCount() (int, bool) {
	res := p.SC.Resolve(StackItemConcept)
	if !res.Found {
		return 0, false
	}
	return len(res.Elements), true
}
