package pages

import (
	"fmt"
	"strings"

	"github.com/ternarybob/specto/internal/harness"
)

// Concepts for the topological sort demo.
var (
	EdgeListConcept = harness.Concept{
		Name: "edge list input",
		Candidates: []harness.Candidate{
			{Selector: "#edgeInput"},
			{Selector: "textarea[name=edges]"},
			{Selector: "textarea"},
		},
	}

	TopoErrorConcept = harness.Concept{
		Name: "error region",
		Candidates: []harness.Candidate{
			{Selector: "#error"},
			{Selector: ".error"},
			{Selector: ".error-message"},
			{Selector: "[role=alert]"},
		},
	}

	TopoOutputConcept = harness.Concept{
		Name: "output region",
		Candidates: []harness.Candidate{
			{Selector: "#output"},
			{Selector: ".output"},
			{Selector: ".result"},
			{Selector: "pre"},
		},
	}
)

// TopoSortPage drives a topological sort visualizer.
type TopoSortPage struct {
	DemoPage
}

// NewTopoSortPage binds a topo sort page object to a scenario.
func NewTopoSortPage(sc *harness.ScenarioContext) *TopoSortPage {
	return &TopoSortPage{DemoPage{SC: sc}}
}

// EnterEdges fills the edge-list textarea with one "A -> B" pair per line.
func (p *TopoSortPage) EnterEdges(edges string) error {
	res := p.SC.ResolveControl(EdgeListConcept)
	if !res.Found {
		return fmt.Errorf("edge list input not found through any candidate")
	}
	return p.SC.Actions.SetValue(res.First().Selector, edges)
}

// Run activates the sort control.
func (p *TopoSortPage) Run() error {
	return p.ClickButton("Sort")
}

// ErrorText reads the error region.
func (p *TopoSortPage) ErrorText() (string, bool) {
	res := p.SC.Resolve(TopoErrorConcept)
	if !res.Found {
		return "", false
	}
	return strings.TrimSpace(res.First().Text), true
}

// OutputText reads the output region.
func (p *TopoSortPage) OutputText() (string, bool) {
	res := p.SC.Resolve(TopoOutputConcept)
	if !res.Found {
		return "", false
	}
	return strings.TrimSpace(res.First().Text), true
}
