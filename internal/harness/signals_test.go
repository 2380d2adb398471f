package harness

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specto/internal/common"
)

func alertEvent(message string) *page.EventJavascriptDialogOpening {
	return &page.EventJavascriptDialogOpening{
		Type:    page.DialogTypeAlert,
		Message: message,
	}
}

func newCollector(def DialogResponse) *SignalCollector {
	return NewSignalCollector(common.GetLogger(), def)
}

func TestCollectorPreservesArrivalOrder(t *testing.T) {
	c := newCollector(DialogResponse{})
	c.append(ObservedEvent{Kind: KindConsole, Level: "log", Text: "first"})
	c.append(ObservedEvent{Kind: KindException, Text: "second"})
	c.append(ObservedEvent{Kind: KindConsole, Level: "warning", Text: "third"})

	events := c.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "first", events[0].Text)
	assert.Equal(t, "second", events[1].Text)
	assert.Equal(t, "third", events[2].Text)
}

func TestCountEventsFilters(t *testing.T) {
	c := newCollector(DialogResponse{})
	c.append(ObservedEvent{Kind: KindConsole, Level: "warning", Text: "Overflow: at capacity"})
	c.append(ObservedEvent{Kind: KindConsole, Level: "warning", Text: "Overflow: still at capacity"})
	c.append(ObservedEvent{Kind: KindConsole, Level: "log", Text: "Overflow mentioned casually"})
	c.append(ObservedEvent{Kind: KindException, Text: "Overflow exception"})

	overflow := regexp.MustCompile(`Overflow`)
	assert.Equal(t, 2, c.CountEvents(KindConsole, "warning", overflow))
	assert.Equal(t, 3, c.CountEvents(KindConsole, "", overflow), "empty level matches every severity")
	assert.Equal(t, 1, c.CountEvents(KindException, "", overflow))
	assert.Equal(t, 3, c.CountEvents(KindConsole, "", nil), "nil pattern matches everything")
	assert.Equal(t, 0, c.CountEvents(KindConsole, "warning", regexp.MustCompile(`Underflow`)))
}

func TestDialogDefaultResponse(t *testing.T) {
	c := newCollector(DialogResponse{Accept: true})

	response := c.takeResponse(alertEvent("The queue is full!"))
	assert.True(t, response.Accept)

	dialogs := c.Dialogs()
	require.Len(t, dialogs, 1)
	assert.Equal(t, "alert", dialogs[0].Type)
	assert.Equal(t, "The queue is full!", dialogs[0].Message)
	assert.True(t, dialogs[0].ResponseGiven.Accept)
}

func TestDialogOverridesAreFIFOAndOneShot(t *testing.T) {
	c := newCollector(DialogResponse{Accept: false})
	c.QueueDialogResponse(DialogResponse{Accept: true, PromptText: "alpha"})
	c.QueueDialogResponse(DialogResponse{Accept: true, PromptText: "beta"})

	first := c.takeResponse(alertEvent("one"))
	assert.Equal(t, "alpha", first.PromptText)

	second := c.takeResponse(alertEvent("two"))
	assert.Equal(t, "beta", second.PromptText)

	// Overrides exhausted; the default answers everything after.
	third := c.takeResponse(alertEvent("three"))
	assert.False(t, third.Accept)
	assert.Empty(t, third.PromptText)

	assert.Equal(t, 3, c.CountDialogs(nil))
	assert.Equal(t, 1, c.CountDialogs(regexp.MustCompile(`two`)))
}

func TestWaitQuietReturnsAfterGraceWhenSilent(t *testing.T) {
	c := newCollector(DialogResponse{})

	start := time.Now()
	c.WaitQuiet(context.Background(), 30*time.Millisecond, time.Second)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond, "must hold for the grace period")
	assert.Less(t, elapsed, 500*time.Millisecond, "must not wait out the max when nothing arrives")
}

func TestWaitQuietMeasuresGraceFromCallTime(t *testing.T) {
	c := newCollector(DialogResponse{})
	c.append(ObservedEvent{Kind: KindConsole, Level: "log", Text: "navigation chatter"})

	// Age the last arrival well past the grace period. Stale arrivals must
	// not let the drain return before signals still in flight land.
	c.mu.Lock()
	c.lastArrival = time.Now().Add(-3 * time.Second)
	c.mu.Unlock()

	go func() {
		time.Sleep(30 * time.Millisecond)
		c.append(ObservedEvent{Kind: KindConsole, Level: "warning", Text: "late warning"})
	}()

	start := time.Now()
	c.WaitQuiet(context.Background(), 100*time.Millisecond, time.Second)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond, "old arrivals must not satisfy the grace period")
	assert.Equal(t, 1, c.CountEvents(KindConsole, "warning", regexp.MustCompile(`late warning`)),
		"the drain must observe signals that arrive during the grace window")
}

func TestWaitQuietBoundedByMax(t *testing.T) {
	c := newCollector(DialogResponse{})

	// Keep signals arriving faster than the grace period; only max stops us.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 40; i++ {
			c.append(ObservedEvent{Kind: KindConsole, Level: "log", Text: "tick"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	start := time.Now()
	c.WaitQuiet(context.Background(), 50*time.Millisecond, 150*time.Millisecond)
	elapsed := time.Since(start)
	<-done

	assert.Less(t, elapsed, 400*time.Millisecond, "max must bound the wait under sustained noise")
}

func TestWaitQuietHonorsContextCancel(t *testing.T) {
	c := newCollector(DialogResponse{})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	c.WaitQuiet(ctx, 5*time.Second, 10*time.Second)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTranscriptMergesStreamsInOrder(t *testing.T) {
	c := newCollector(DialogResponse{Accept: true})
	c.append(ObservedEvent{Kind: KindConsole, Level: "warning", Text: "Overflow", Timestamp: time.Now()})
	c.takeResponse(alertEvent("The queue is full!"))
	c.append(ObservedEvent{Kind: KindException, Text: "TypeError: boom", Source: "app.js:12", Timestamp: time.Now()})

	lines := c.Transcript()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "console.warning: Overflow")
	assert.Contains(t, lines[1], `dialog.alert: "The queue is full!" -> accepted`)
	assert.Contains(t, lines[2], "exception: TypeError: boom")
	assert.Contains(t, lines[2], "app.js:12")
}

func TestDecodeRemoteValue(t *testing.T) {
	assert.Equal(t, "hello", decodeRemoteValue([]byte(`"hello"`)))
	assert.Equal(t, "42", decodeRemoteValue([]byte(`42`)))
	assert.Equal(t, `{"a":1}`, decodeRemoteValue([]byte(`{"a":1}`)))
}
