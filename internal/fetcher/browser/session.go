// Package browser contains fetchers that obtain storefront content through a
// headless Chrome instance, either by issuing fetch calls inside the page's
// JavaScript context or by navigating and snapshotting the rendered DOM.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the shared browser session.
type Config struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	// BootstrapWait is how long to idle on the storefront after the first
	// navigation so the anti-bot interstitial can complete.
	BootstrapWait time.Duration
}

// Session owns one headless Chrome instance. The API tab created by Bootstrap
// stays on the storefront origin so browser-context fetches inherit its
// cookies and TLS fingerprint.
type Session struct {
	cfg    Config
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu        sync.Mutex
	apiTab    context.Context
	apiCancel context.CancelFunc
}

// NewSession launches the browser.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.BootstrapWait <= 0 {
		cfg.BootstrapWait = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Session{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Bootstrap navigates a dedicated tab to the storefront and idles until the
// anti-bot check settles. The tab is kept open for subsequent API fetches.
func (s *Session) Bootstrap(ctx context.Context, storefrontURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apiTab != nil {
		return nil
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	runCtx, cancel := context.WithTimeout(tabCtx, s.cfg.NavigationTimeout+s.cfg.BootstrapWait)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	s.logger.Info("bootstrapping browser session", zap.String("url", storefrontURL))
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(storefrontURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.BootstrapWait),
	)
	if err != nil {
		tabCancel()
		return fmt.Errorf("bootstrap storefront: %w", err)
	}

	s.apiTab = tabCtx
	s.apiCancel = tabCancel
	return nil
}

// fetchExpr issues a same-origin fetch and resolves to the decoded JSON body.
const fetchExpr = `(async () => {
	const resp = await fetch(%q, {
		headers: {
			'accept': 'application/json',
			'content-type': 'application/json'
		}
	});
	if (!resp.ok) {
		throw new Error('HTTP ' + resp.status);
	}
	return await resp.json();
})()`

// FetchJSON executes a fetch call inside the bootstrapped tab's JavaScript
// context and returns the decoded payload. Top-level arrays are wrapped under
// a "products" key so callers always see an object.
func (s *Session) FetchJSON(ctx context.Context, rawURL string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apiTab == nil {
		return nil, fmt.Errorf("browser session not bootstrapped")
	}

	runCtx, cancel := context.WithTimeout(s.apiTab, s.cfg.NavigationTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var payload json.RawMessage
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(fmt.Sprintf(fetchExpr, rawURL), &payload,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true).WithReturnByValue(true)
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("browser fetch %s: %w", rawURL, err)
	}
	return decodePayload(payload)
}

// FetchHTML navigates a fresh tab to the URL and returns the rendered
// document after a scroll pass that flushes lazy-loaded content.
func (s *Session) FetchHTML(ctx context.Context, rawURL string) ([]byte, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}
	return []byte(html), nil
}

// Close tears down the browser and allocator contexts.
func (s *Session) Close() {
	s.mu.Lock()
	if s.apiCancel != nil {
		s.apiCancel()
		s.apiTab = nil
		s.apiCancel = nil
	}
	s.mu.Unlock()
	s.browserCancel()
	s.allocCancel()
}

// decodePayload tolerates both object and array top-level shapes.
func decodePayload(payload json.RawMessage) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err == nil {
		return doc, nil
	}
	var list []any
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return map[string]any{"products": list}, nil
}

// forwardCancel propagates cancellation of parent into cancel until the
// returned stop function is called.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
