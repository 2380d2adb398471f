package harness

import (
	"context"
	"strings"
)

// Candidate is one fallback lookup expression for a semantic UI concept.
// Selector is a CSS selector; Text and Attr/AttrValue optionally narrow the
// matched set. Candidates are cheap descriptors, evaluated lazily.
type Candidate struct {
	Selector  string // CSS selector, required
	Text      string // if set, keep only elements whose rendered text contains this
	Attr      string // if set, keep only elements carrying this attribute
	AttrValue string // if set with Attr, require the attribute to equal this value
}

// Concept is a named, ordered list of fallback candidates for one semantic
// UI element ("the tile elements", "the status text"). Earlier candidates
// take priority; DOM order never breaks ties between candidates.
type Concept struct {
	Name       string
	Candidates []Candidate
}

// Element is one matched DOM element as seen through a Querier.
type Element struct {
	Selector string `json:"selector"` // concrete selector locating this element for follow-up actions
	Text     string `json:"text"`     // rendered text content (input value for form controls)
}

// Querier evaluates a single candidate against a document. Implementations
// exist for the live page (chromedp) and for captured HTML snapshots
// (goquery); see dom.go.
type Querier interface {
	Query(ctx context.Context, c Candidate) ([]Element, error)
}

// Resolution is the outcome of resolving a concept. Found is false when
// every candidate was exhausted; that is an ordinary result, not an error,
// so callers can apply scenario-level tolerance.
type Resolution struct {
	Concept  string
	Found    bool
	Index    int // index of the winning candidate
	Winner   Candidate
	Elements []Element // non-empty-text matches of the winning candidate
}

// First returns the first matched element. Only valid when Found is true.
func (r Resolution) First() Element {
	return r.Elements[0]
}

// Texts returns the rendered text of every matched element in DOM order.
func (r Resolution) Texts() []string {
	texts := make([]string, len(r.Elements))
	for i, el := range r.Elements {
		texts[i] = el.Text
	}
	return texts
}

// Resolve tries the concept's candidates in declared order and returns the
// first candidate yielding at least one element with non-empty rendered
// text. Elements rendering only whitespace are treated as non-matches and
// skipped in favour of the next candidate. Query errors (bad selector,
// detached frame) are also treated as non-matches: resolution never throws.
func Resolve(ctx context.Context, q Querier, concept Concept) Resolution {
	for i, candidate := range concept.Candidates {
		elements, err := q.Query(ctx, candidate)
		if err != nil {
			continue
		}

		kept := elements[:0:0]
		for _, el := range elements {
			if strings.TrimSpace(el.Text) == "" {
				continue
			}
			kept = append(kept, el)
		}
		if len(kept) == 0 {
			continue
		}

		return Resolution{
			Concept:  concept.Name,
			Found:    true,
			Index:    i,
			Winner:   candidate,
			Elements: kept,
		}
	}

	return Resolution{Concept: concept.Name, Found: false, Index: -1}
}

// ResolveAny resolves a concept but keeps candidates whose matches render
// empty text, for concepts naming form controls that legitimately hold no
// value yet (an empty input field still exists). The empty-text rule only
// applies to content-bearing concepts; controls are located, not read.
func ResolveAny(ctx context.Context, q Querier, concept Concept) Resolution {
	for i, candidate := range concept.Candidates {
		elements, err := q.Query(ctx, candidate)
		if err != nil || len(elements) == 0 {
			continue
		}
		return Resolution{
			Concept:  concept.Name,
			Found:    true,
			Index:    i,
			Winner:   candidate,
			Elements: elements,
		}
	}
	return Resolution{Concept: concept.Name, Found: false, Index: -1}
}
