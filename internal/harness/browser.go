package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specto/internal/common"
)

// Browser owns the shared Chrome exec allocator and hands out isolated
// browser contexts, one per scenario. Scenario contexts are never shared;
// closing one stops that page's script execution without touching the
// allocator or any other scenario.
type Browser struct {
	mu          sync.Mutex
	config      common.BrowserConfig
	logger      arbor.ILogger
	allocCtx    context.Context
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	started     bool
}

// NewBrowser creates an unstarted browser manager.
func NewBrowser(config common.BrowserConfig, logger arbor.ILogger) *Browser {
	return &Browser{
		config: config,
		logger: logger,
	}
}

// Start launches the allocator and probes it with a blank navigation so a
// missing or broken Chrome install fails fast rather than on the first
// scenario.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("browser already started")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("disable-gpu", b.config.DisableGPU),
		chromedp.Flag("no-sandbox", b.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(b.config.WindowWidth, b.config.WindowHeight),
		chromedp.UserAgent(b.config.UserAgent),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	b.rootCtx, b.rootCancel = chromedp.NewContext(b.allocCtx)

	probeTimeout := common.Duration(b.config.StartupTimeout, 30*time.Second)
	probeCtx, cancel := context.WithTimeout(b.rootCtx, probeTimeout)
	defer cancel()

	startTime := time.Now()
	var title string
	if err := chromedp.Run(probeCtx,
		chromedp.Navigate("about:blank"),
		chromedp.Title(&title),
	); err != nil {
		b.rootCancel()
		b.allocCancel()
		return fmt.Errorf("browser failed startup probe: %w", err)
	}

	b.started = true
	b.logger.Info().
		Bool("headless", b.config.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser allocator ready")

	return nil
}

// NewScenarioContext creates a fresh, isolated browser context bounded by
// timeout. The returned cancel tears the context down and must always run;
// it is the only lever the harness has over page-internal timers.
func (b *Browser) NewScenarioContext(timeout time.Duration) (context.Context, context.CancelFunc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil, nil, fmt.Errorf("browser not started")
	}

	browserCtx, cancelBrowser := chromedp.NewContext(b.rootCtx)
	timedCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)

	cancel := func() {
		cancelTimeout()
		if err := chromedp.Cancel(browserCtx); err != nil {
			b.logger.Debug().Err(err).Msg("Browser context cancel returned")
		}
		cancelBrowser()
	}
	return timedCtx, cancel, nil
}

// Shutdown tears down the allocator, bounded so a wedged Chrome cannot hang
// process exit.
func (b *Browser) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		b.rootCancel()
		b.allocCancel()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		b.logger.Warn().Msg("Browser shutdown timed out")
	}

	b.started = false
	b.logger.Info().Msg("Browser allocator shut down")
	return nil
}
