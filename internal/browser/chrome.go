// Package browser implements the browser capability on chromedp.
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/logging"
)

const (
	defaultIdleAfter   = 2 * time.Second
	defaultNavTimeout  = 45 * time.Second
	defaultStopTimeout = 5 * time.Second
)

// Chrome is a chromedp-backed interfaces.Browser. One Chrome instance owns
// one browser process and one tab; it must not be shared across concurrent
// runs.
type Chrome struct {
	logger     logging.Logger
	idleAfter  time.Duration
	navTimeout time.Duration

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tabCtx      context.Context
	started     bool
}

// NewChrome creates an unstarted browser capability.
func NewChrome(logger logging.Logger) *Chrome {
	return &Chrome{
		logger:     logger.With(logging.Field{Key: "component", Value: "browser"}),
		idleAfter:  defaultIdleAfter,
		navTimeout: defaultNavTimeout,
	}
}

// Start boots a Chrome process. Traffic is routed through cfg.ProxyAddr when
// set, with certificate errors ignored so the intercepting proxy can MITM.
func (c *Chrome) Start(ctx context.Context, cfg interfaces.BrowserConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("browser already started")
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ProxyAddr != "" {
		opts = append(opts,
			chromedp.ProxyServer(cfg.ProxyAddr),
			chromedp.Flag("ignore-certificate-errors", true),
		)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Run with no actions forces the process to launch so a missing binary
	// surfaces here, in the non-recoverable browser_init phase.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("launch chrome: %w", err)
	}

	c.allocCancel = allocCancel
	c.tabCancel = tabCancel
	c.tabCtx = tabCtx
	c.started = true

	c.logger.Info("browser started",
		logging.Field{Key: "headless", Value: cfg.Headless},
		logging.Field{Key: "proxy", Value: cfg.ProxyAddr})
	return nil
}

// Navigate loads url in the tab and waits for the network to go idle.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	c.mu.Lock()
	tabCtx := c.tabCtx
	c.mu.Unlock()
	if tabCtx == nil {
		return fmt.Errorf("browser not started")
	}

	idle := waitNetworkIdle(tabCtx, c.idleAfter)

	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.navTimeout):
		// A chatty page never settles; proceed with what loaded.
		c.logger.Warn("network idle timeout, continuing", logging.Field{Key: "url", Value: url})
	}
	return nil
}

// CaptureSession extracts the tab's cookies for forwarding to the other
// scanning tools.
func (c *Chrome) CaptureSession(ctx context.Context) (*interfaces.Session, error) {
	c.mu.Lock()
	tabCtx := c.tabCtx
	c.mu.Unlock()
	if tabCtx == nil {
		return nil, fmt.Errorf("browser not started")
	}

	var cookies []*network.Cookie
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capture session: %w", err)
	}

	session := &interfaces.Session{
		Cookies: make(map[string]string, len(cookies)),
		Headers: map[string]string{},
	}
	for _, ck := range cookies {
		session.Cookies[ck.Name] = ck.Value
	}
	return session, nil
}

// Stop tears the browser down. It is idempotent and safe to call while a
// navigation is in flight.
func (c *Chrome) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.tabCancel()
	c.allocCancel()
	c.started = false
	c.tabCtx = nil
	c.logger.Info("browser stopped")
	return nil
}

// waitNetworkIdle returns a channel that fires once no request has been in
// flight for idleAfter.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) chan struct{} {
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) == 0 {
				once.Do(func() {
					close(idleChan)
				})
			}
		})
	}
	startTimer()

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			atomic.AddInt32(&activeReqs, 1)
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if atomic.AddInt32(&activeReqs, -1) == 0 {
				startTimer()
			}
		}
	})

	return idleChan
}
