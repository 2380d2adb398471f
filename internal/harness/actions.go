package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Actions translates semantic user actions into chromedp primitives with
// explicit fallback chains. A located control that rejects the native
// primitive gets a forced synthetic-event dispatch before the action is
// surfaced as a failure. All side effects stay inside the scenario's own
// browser context.
type Actions struct {
	ctx       context.Context // scenario-owned chromedp context
	limiter   *rate.Limiter
	dragSteps int
	logger    arbor.ILogger
}

// NewActions binds an action adapter to a scenario context. interval spaces
// out dispatched primitives so target pages with debounced handlers observe
// distinct user gestures.
func NewActions(ctx context.Context, interval time.Duration, dragSteps int, logger arbor.ILogger) *Actions {
	if dragSteps <= 0 {
		dragSteps = 12
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Actions{
		ctx:       ctx,
		limiter:   limiter,
		dragSteps: dragSteps,
		logger:    logger,
	}
}

func (a *Actions) pace() {
	_ = a.limiter.Wait(a.ctx)
}

// SetValue enters a value into a text field and commits it. Native fill
// first; on failure the control's value is set directly and synthetic
// input/change events are dispatched so framework listeners still fire.
func (a *Actions) SetValue(selector, value string) error {
	a.pace()

	err := chromedp.Run(a.ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}

	a.logger.Debug().Err(err).Str("selector", selector).Msg("Native fill failed, dispatching synthetic events")
	if ferr := a.forceValue(selector, value); ferr != nil {
		return fmt.Errorf("failed to set value on %s: %w", selector, err)
	}
	return nil
}

// forceValue mutates the control's value and dispatches input+change.
func (a *Actions) forceValue(selector, value string) error {
	sel, _ := json.Marshal(selector)
	val, _ := json.Marshal(value)
	script := fmt.Sprintf(`
		(() => {
			const el = document.querySelector(%s);
			if (!el) return false;
			el.value = %s;
			el.dispatchEvent(new Event('input', {bubbles: true}));
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		})()
	`, sel, val)

	var ok bool
	if err := chromedp.Run(a.ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element matches %s", selector)
	}
	return nil
}

// Click activates a control. Native click first, synthetic click on failure
// (covers controls occluded by overlays or outside the viewport).
func (a *Actions) Click(selector string) error {
	a.pace()

	err := chromedp.Run(a.ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}

	a.logger.Debug().Err(err).Str("selector", selector).Msg("Native click failed, dispatching synthetic click")
	sel, _ := json.Marshal(selector)
	script := fmt.Sprintf(`
		(() => {
			const el = document.querySelector(%s);
			if (!el) return false;
			el.click();
			return true;
		})()
	`, sel)

	var ok bool
	if ferr := chromedp.Run(a.ctx, chromedp.Evaluate(script, &ok)); ferr != nil || !ok {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// SetSlider sets a range control to the given value. Range inputs ignore
// SetValue semantics in some pages, so the synthetic input/change pair is
// always dispatched after the value lands.
func (a *Actions) SetSlider(selector, value string) error {
	a.pace()
	return a.forceValue(selector, value)
}

// Commit presses Enter in the focused control located by selector.
func (a *Actions) Commit(selector string) error {
	a.pace()
	return chromedp.Run(a.ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, "\r", chromedp.ByQuery),
	)
}

// Press dispatches a keyboard shortcut to the page. key follows CDP key
// naming ("a", "Enter", "ArrowDown"); modifiers combine input.ModifierCtrl
// and friends, zero for a bare key.
func (a *Actions) Press(key string, modifiers input.Modifier) error {
	a.pace()

	if modifiers == 0 {
		return chromedp.Run(a.ctx, chromedp.KeyEvent(key))
	}

	return chromedp.Run(a.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchKeyEvent(input.KeyDown).
			WithModifiers(modifiers).
			WithKey(key).
			Do(ctx); err != nil {
			return err
		}
		return input.DispatchKeyEvent(input.KeyUp).
			WithModifiers(modifiers).
			WithKey(key).
			Do(ctx)
	}))
}

// Drag performs a pointer drag from (fromX, fromY) to (toX, toY) in discrete
// steps, for canvas-based node dragging. The runtime acknowledges each
// dispatched event before the next is sent, so the page observes a
// down -> move* -> up sequence in order.
func (a *Actions) Drag(fromX, fromY, toX, toY float64) error {
	a.pace()

	steps := a.dragSteps
	return chromedp.Run(a.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MousePressed, fromX, fromY).
			WithButton(input.Left).
			WithClickCount(1).
			Do(ctx); err != nil {
			return fmt.Errorf("drag press failed: %w", err)
		}

		for i := 1; i <= steps; i++ {
			t := float64(i) / float64(steps)
			x := fromX + (toX-fromX)*t
			y := fromY + (toY-fromY)*t
			if err := input.DispatchMouseEvent(input.MouseMoved, x, y).
				WithButton(input.Left).
				Do(ctx); err != nil {
				return fmt.Errorf("drag move failed at step %d: %w", i, err)
			}
		}

		if err := input.DispatchMouseEvent(input.MouseReleased, toX, toY).
			WithButton(input.Left).
			WithClickCount(1).
			Do(ctx); err != nil {
			return fmt.Errorf("drag release failed: %w", err)
		}
		return nil
	}))
}

// Navigate loads a URL and waits for the document to become interactive.
func (a *Actions) Navigate(url string, timeout time.Duration) error {
	ctx := a.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(a.ctx, timeout)
		defer cancel()
	}

	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}
