package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/specto/internal/harness"
)

// Concepts for the sorting visualizer family (bubble sort, radix sort and
// friends). Input field, apply control, tile row, counters.
var (
	ArrayInputConcept = harness.Concept{
		Name: "array input",
		Candidates: []harness.Candidate{
			{Selector: "#arrayInput"},
			{Selector: "input[name=array]"},
			{Selector: ".array-input input"},
			{Selector: "input[type=text]"},
		},
	}

	TileConcept = harness.Concept{
		Name: "tile elements",
		Candidates: []harness.Candidate{
			{Selector: ".tile"},
			{Selector: ".bar"},
			{Selector: ".array-element"},
			{Selector: "#array-container > div"},
			{Selector: "[data-value]"},
		},
	}

	SpeedSliderConcept = harness.Concept{
		Name: "speed slider",
		Candidates: []harness.Candidate{
			{Selector: "#speed"},
			{Selector: "input[type=range]"},
			{Selector: ".speed-slider input"},
		},
	}
)

// SortingPage drives a sorting demo.
type SortingPage struct {
	DemoPage
}

// NewSortingPage binds a sorting page object to a scenario.
func NewSortingPage(sc *harness.ScenarioContext) *SortingPage {
	return &SortingPage{DemoPage{SC: sc}}
}

// EnterArray types a comma-separated value list into the array field and
// commits it.
func (p *SortingPage) EnterArray(csv string) error {
	res := p.SC.ResolveControl(ArrayInputConcept)
	if !res.Found {
		return fmt.Errorf("array input not found through any candidate")
	}
	if err := p.SC.Actions.SetValue(res.First().Selector, csv); err != nil {
		return err
	}
	return p.SC.Actions.Commit(res.First().Selector)
}

// Apply activates the apply/build control.
func (p *SortingPage) Apply() error {
	return p.ClickButton("Apply")
}

// Sort activates the sort control.
func (p *SortingPage) Sort() error {
	return p.ClickButton("Sort")
}

// SetSpeed sets the animation speed slider, if the page has one.
func (p *SortingPage) SetSpeed(value string) error {
	res := p.SC.ResolveControl(SpeedSliderConcept)
	if !res.Found {
		return fmt.Errorf("speed slider not found through any candidate")
	}
	return p.SC.Actions.SetSlider(res.First().Selector, value)
}

// TileTexts reads the rendered tile sequence in DOM order.
func (p *SortingPage) TileTexts() ([]string, error) {
	res := p.SC.Resolve(TileConcept)
	if !res.Found {
		return nil, fmt.Errorf("tiles not found through any candidate")
	}
	return res.Texts(), nil
}

// WaitForTiles suspends until the page renders at least min tiles.
func (p *SortingPage) WaitForTiles(min int) error {
	return p.SC.PollUntil("tiles rendered", 0, func(ctx context.Context) (bool, error) {
		res := harness.Resolve(ctx, p.SC.Querier, TileConcept)
		return res.Found && len(res.Elements) >= min, nil
	})
}

// TilesContain reports whether any rendered tile includes the literal value.
func (p *SortingPage) TilesContain(value string) (bool, error) {
	texts, err := p.TileTexts()
	if err != nil {
		return false, err
	}
	for _, text := range texts {
		if strings.Contains(text, value) {
			return true, nil
		}
	}
	return false, nil
}
