package harness

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// EventKind distinguishes the two asynchronous channels an ObservedEvent can
// arrive on.
type EventKind string

const (
	KindConsole   EventKind = "console"
	KindException EventKind = "exception"
)

// ObservedEvent is one captured console message or uncaught exception.
// Immutable once created; owned exclusively by the scenario that captured it.
type ObservedEvent struct {
	Kind      EventKind
	Level     string // console severity (log, info, warning, error, ...); empty for exceptions
	Text      string
	Source    string // url:line when the runtime reported one
	Timestamp time.Time
}

// DialogResponse is the answer given to a native dialog.
type DialogResponse struct {
	Accept     bool
	PromptText string
}

// DialogRecord is one native dialog observed during a scenario, with the
// response the collector gave it.
type DialogRecord struct {
	Type          string // alert, confirm, prompt, beforeunload
	Message       string
	ResponseGiven DialogResponse
	Timestamp     time.Time
}

// SignalCollector subscribes to a page's console, exception and dialog
// channels and accumulates every event into an append-only, time-ordered log
// scoped to one scenario. Attach must run before navigation so errors thrown
// during initial script execution are not missed. Every dialog is answered
// within its own delivery turn: the default response unless the scenario has
// queued an override for that occurrence.
type SignalCollector struct {
	mu              sync.Mutex
	events          []ObservedEvent
	dialogs         []DialogRecord
	lastArrival     time.Time
	defaultResponse DialogResponse
	overrides       []DialogResponse // FIFO, one per dialog occurrence
	logger          arbor.ILogger
}

// NewSignalCollector creates a collector with the given default dialog
// response.
func NewSignalCollector(logger arbor.ILogger, defaultResponse DialogResponse) *SignalCollector {
	return &SignalCollector{
		events:          make([]ObservedEvent, 0, 16),
		dialogs:         make([]DialogRecord, 0, 4),
		defaultResponse: defaultResponse,
		logger:          logger,
	}
}

// Attach subscribes the collector to the scenario's browser context. The
// chromedp event stream delivers events in page emission order, which the
// append-only log preserves.
func (c *SignalCollector) Attach(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			c.recordConsole(e)
		case *runtime.EventExceptionThrown:
			c.recordException(e)
		case *page.EventJavascriptDialogOpening:
			response := c.takeResponse(e)
			action := page.HandleJavaScriptDialog(response.Accept)
			if response.PromptText != "" {
				action = action.WithPromptText(response.PromptText)
			}
			// Must respond or the browser blocks; chromedp requires the
			// handler call to run outside the event callback.
			go func() {
				if err := chromedp.Run(ctx, action); err != nil {
					c.logger.Warn().Err(err).Str("message", e.Message).Msg("Failed to respond to dialog")
				}
			}()
		}
	})
}

// QueueDialogResponse queues an override for the next unanswered dialog.
// Queue before triggering the action that raises the dialog.
func (c *SignalCollector) QueueDialogResponse(r DialogResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides = append(c.overrides, r)
}

func (c *SignalCollector) takeResponse(e *page.EventJavascriptDialogOpening) DialogResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	response := c.defaultResponse
	if len(c.overrides) > 0 {
		response = c.overrides[0]
		c.overrides = c.overrides[1:]
	}

	c.dialogs = append(c.dialogs, DialogRecord{
		Type:          string(e.Type),
		Message:       e.Message,
		ResponseGiven: response,
		Timestamp:     time.Now(),
	})
	c.lastArrival = time.Now()
	return response
}

func (c *SignalCollector) recordConsole(e *runtime.EventConsoleAPICalled) {
	var parts []string
	for _, arg := range e.Args {
		if arg == nil {
			continue
		}
		if len(arg.Value) > 0 {
			parts = append(parts, decodeRemoteValue(arg.Value))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}

	source := ""
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		frame := e.StackTrace.CallFrames[0]
		source = fmt.Sprintf("%s:%d", frame.URL, frame.LineNumber)
	}

	c.append(ObservedEvent{
		Kind:      KindConsole,
		Level:     string(e.Type),
		Text:      strings.Join(parts, " "),
		Source:    source,
		Timestamp: time.Now(),
	})
}

func (c *SignalCollector) recordException(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}

	text := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		text = e.ExceptionDetails.Exception.Description
	}

	source := ""
	if e.ExceptionDetails.URL != "" {
		source = fmt.Sprintf("%s:%d", e.ExceptionDetails.URL, e.ExceptionDetails.LineNumber)
	}

	c.append(ObservedEvent{
		Kind:      KindException,
		Text:      text,
		Source:    source,
		Timestamp: time.Now(),
	})
}

func (c *SignalCollector) append(ev ObservedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	c.lastArrival = time.Now()
}

// decodeRemoteValue renders a console argument's JSON value as plain text.
func decodeRemoteValue(raw []byte) string {
	s := string(raw)
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	return s
}

// Events returns a copy of the captured event log in arrival order.
func (c *SignalCollector) Events() []ObservedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ObservedEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Dialogs returns a copy of the captured dialog records in arrival order.
func (c *SignalCollector) Dialogs() []DialogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DialogRecord, len(c.dialogs))
	copy(out, c.dialogs)
	return out
}

// CountEvents counts events of the given kind whose text matches pattern.
// A nil pattern matches everything; an empty level matches every severity.
func (c *SignalCollector) CountEvents(kind EventKind, level string, pattern *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, ev := range c.events {
		if ev.Kind != kind {
			continue
		}
		if level != "" && ev.Level != level {
			continue
		}
		if pattern != nil && !pattern.MatchString(ev.Text) {
			continue
		}
		n++
	}
	return n
}

// CountDialogs counts dialogs whose message matches pattern (nil matches all).
func (c *SignalCollector) CountDialogs(pattern *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, d := range c.dialogs {
		if pattern != nil && !pattern.MatchString(d.Message) {
			continue
		}
		n++
	}
	return n
}

// WaitQuiet blocks until no new signal has arrived for the grace period, or
// until max elapses, whichever comes first. Asynchronous page scripts emit
// after the triggering action returns; a bounded grace period is how the
// harness concludes no further events will arrive.
func (c *SignalCollector) WaitQuiet(ctx context.Context, grace, max time.Duration) {
	start := time.Now()
	deadline := start.Add(max)
	for {
		c.mu.Lock()
		last := c.lastArrival
		c.mu.Unlock()

		// The quiet window is measured from this call: arrivals that predate
		// it (navigation chatter, earlier steps) never satisfy the grace
		// period on their own.
		if last.Before(start) {
			last = start
		}
		if time.Since(last) >= grace {
			return
		}
		if time.Now().After(deadline) {
			return
		}

		interval := grace / 4
		if interval <= 0 {
			interval = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Transcript renders the full ordered log of console, exception and dialog
// signals for failure diagnostics.
func (c *SignalCollector) Transcript() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type entry struct {
		at   time.Time
		line string
	}
	entries := make([]entry, 0, len(c.events)+len(c.dialogs))

	for _, ev := range c.events {
		label := string(ev.Kind)
		if ev.Kind == KindConsole {
			label = "console." + ev.Level
		}
		line := fmt.Sprintf("[%s] %s: %s", ev.Timestamp.Format("15:04:05.000"), label, ev.Text)
		if ev.Source != "" {
			line += " (" + ev.Source + ")"
		}
		entries = append(entries, entry{ev.Timestamp, line})
	}
	for _, d := range c.dialogs {
		verdict := "dismissed"
		if d.ResponseGiven.Accept {
			verdict = "accepted"
		}
		line := fmt.Sprintf("[%s] dialog.%s: %q -> %s", d.Timestamp.Format("15:04:05.000"), d.Type, d.Message, verdict)
		entries = append(entries, entry{d.Timestamp, line})
	}

	// Merge the two streams back into arrival order.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].at.Before(entries[j-1].at); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.line
	}
	return lines
}
