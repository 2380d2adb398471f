package pages

import (
	"fmt"

	"github.com/ternarybob/specto/internal/harness"
)

// Concepts for the queue demo family.
var (
	QueueValueInputConcept = harness.Concept{
		Name: "queue value input",
		Candidates: []harness.Candidate{
			{Selector: "#enqueueInput"},
			{Selector: "input[name=enqueue]"},
			{Selector: ".enqueue-controls input"},
			{Selector: "input[type=text]"},
		},
	}

	QueueItemConcept = harness.Concept{
		Name: "queue items",
		Candidates: []harness.Candidate{
			{Selector: ".queue-item"},
			{Selector: "#queue > div"},
			{Selector: ".queue li"},
		},
	}
)

// QueuePage drives a queue visualizer.
type QueuePage struct {
	DemoPage
}

// NewQueuePage binds a queue page object to a scenario.
func NewQueuePage(sc *harness.ScenarioContext) *QueuePage {
	return &QueuePage{DemoPage{SC: sc}}
}

// Enqueue enters a value and activates the enqueue control.
func (p *QueuePage) Enqueue(value string) error {
	res := p.SC.ResolveControl(QueueValueInputConcept)
	if !res.Found {
		return fmt.Errorf("queue value input not found through any candidate")
	}
	if err := p.SC.Actions.SetValue(res.First().Selector, value); err != nil {
		return err
	}
	return p.ClickButton("Enqueue")
}

// Dequeue activates the dequeue control.
func (p *QueuePage) Dequeue() error {
	return p.ClickButton("Dequeue")
}

// Size reads the queue's reported size stat.
func (p *QueuePage) Size() (float64, bool) {
	return p.StatValue("Size")
}

// ItemCount counts the rendered queue items.
func (p *QueuePage) ItemCount() (int, bool) {
	res := p.SC.Resolve(QueueItemConcept)
	if !res.Found {
		return 0, false
	}
	return len(res.Elements), true
}
