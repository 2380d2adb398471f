package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// candidateQueryJS evaluates one candidate inside the page and returns the
// matched elements with a concrete selector usable for follow-up actions.
// Read-only: the page is never patched or repaired through this path.
const candidateQueryJS = `
(spec => {
	const cssPath = el => {
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		while (el && el.nodeType === Node.ELEMENT_NODE && el !== document.documentElement) {
			let part = el.tagName.toLowerCase();
			const parent = el.parentElement;
			if (parent) {
				const siblings = Array.from(parent.children).filter(c => c.tagName === el.tagName);
				if (siblings.length > 1) {
					part += ':nth-of-type(' + (siblings.indexOf(el) + 1) + ')';
				}
			}
			parts.unshift(part);
			el = parent;
		}
		return parts.join(' > ');
	};
	const rendered = el => {
		if ('value' in el && el.tagName !== 'LI' && typeof el.value === 'string' && el.textContent.trim() === '') {
			return el.value;
		}
		return el.textContent || '';
	};
	let nodes;
	try {
		nodes = Array.from(document.querySelectorAll(spec.selector));
	} catch (e) {
		return [];
	}
	if (spec.text) {
		nodes = nodes.filter(el => (el.textContent || '').includes(spec.text));
	}
	if (spec.attr) {
		nodes = nodes.filter(el => {
			if (!el.hasAttribute(spec.attr)) return false;
			if (spec.attrValue) return el.getAttribute(spec.attr) === spec.attrValue;
			return true;
		});
	}
	return nodes.map(el => ({selector: cssPath(el), text: rendered(el)}));
})(%s)
`

type candidateSpec struct {
	Selector  string `json:"selector"`
	Text      string `json:"text,omitempty"`
	Attr      string `json:"attr,omitempty"`
	AttrValue string `json:"attrValue,omitempty"`
}

// LiveQuerier evaluates candidates against the live page through chromedp.
type LiveQuerier struct {
	ctx context.Context // scenario-owned chromedp context
}

// NewLiveQuerier wraps a scenario's chromedp context as a Querier.
func NewLiveQuerier(ctx context.Context) *LiveQuerier {
	return &LiveQuerier{ctx: ctx}
}

// Query implements Querier against the live DOM.
func (q *LiveQuerier) Query(ctx context.Context, c Candidate) ([]Element, error) {
	spec, err := json.Marshal(candidateSpec{
		Selector:  c.Selector,
		Text:      c.Text,
		Attr:      c.Attr,
		AttrValue: c.AttrValue,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidate: %w", err)
	}

	runCtx := q.ctx
	if ctx != nil {
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithDeadline(q.ctx, deadline)
			defer cancel()
		}
	}

	var elements []Element
	script := fmt.Sprintf(candidateQueryJS, string(spec))
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &elements)); err != nil {
		return nil, fmt.Errorf("candidate query failed for %q: %w", c.Selector, err)
	}
	return elements, nil
}

// SnapshotQuerier evaluates candidates against a captured HTML snapshot.
// Used for failure diagnostics after a context is gone and for exercising
// resolver logic without a browser.
type SnapshotQuerier struct {
	doc *goquery.Document
}

// NewSnapshotQuerier parses an HTML snapshot into a Querier.
func NewSnapshotQuerier(html string) (*SnapshotQuerier, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &SnapshotQuerier{doc: doc}, nil
}

// Query implements Querier over the parsed snapshot.
func (q *SnapshotQuerier) Query(ctx context.Context, c Candidate) (elements []Element, err error) {
	// goquery panics on selectors cascadia cannot parse; treat that as an
	// ordinary non-match like the live querier does.
	defer func() {
		if r := recover(); r != nil {
			elements = nil
			err = fmt.Errorf("invalid selector %q: %v", c.Selector, r)
		}
	}()

	q.doc.Find(c.Selector).Each(func(i int, sel *goquery.Selection) {
		if c.Text != "" && !strings.Contains(sel.Text(), c.Text) {
			return
		}
		if c.Attr != "" {
			val, ok := sel.Attr(c.Attr)
			if !ok {
				return
			}
			if c.AttrValue != "" && val != c.AttrValue {
				return
			}
		}

		text := sel.Text()
		if strings.TrimSpace(text) == "" {
			if val, ok := sel.Attr("value"); ok {
				text = val
			}
		}

		selector := c.Selector
		if id, ok := sel.Attr("id"); ok && id != "" {
			selector = "#" + id
		}
		elements = append(elements, Element{Selector: selector, Text: text})
	})
	return elements, nil
}
