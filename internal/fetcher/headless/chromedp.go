// Package headless is the browser-backed Navigator. Pages are rendered in
// Chrome through chromedp, interaction hooks run against the live page,
// and the settled DOM is returned.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/filter"
	"github.com/JakeFAU/infofi-harvester/internal/policy/ratelimit"
)

// Config controls the browser.
type Config struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	// SettleDelay is waited after the body is ready, before hooks run.
	SettleDelay    time.Duration
	ProfileDir     string
	ViewportWidth  int
	ViewportHeight int
	Proxies        []Proxy
}

// Navigator implements crawler.Navigator with headless Chrome.
type Navigator struct {
	cfg        Config
	allocators []*allocator
	next       atomic.Uint64
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

type allocator struct {
	ctx    context.Context
	cancel context.CancelFunc
	proxy  *Proxy
}

// NewChromedp builds a Navigator with one browser allocator per proxy (or
// a single direct one). Chrome itself starts on first use.
func NewChromedp(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) (*Navigator, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, errors.New("navigation timeout must be >= 0")
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1280, 800
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &Navigator{cfg: cfg, limiter: limiter, logger: logger.Named("headless")}
	if len(cfg.Proxies) == 0 {
		n.allocators = append(n.allocators, n.newAllocator(nil))
	}
	for i := range cfg.Proxies {
		n.allocators = append(n.allocators, n.newAllocator(&cfg.Proxies[i]))
	}
	return n, nil
}

func (n *Navigator) newAllocator(proxy *Proxy) *allocator {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(n.cfg.ViewportWidth, n.cfg.ViewportHeight),
	)
	if n.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if n.cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(n.cfg.ProfileDir))
	}
	if proxy != nil {
		opts = append(opts, chromedp.ProxyServer(proxy.Server))
	}
	ctx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &allocator{ctx: ctx, cancel: cancel, proxy: proxy}
}

// Close shuts down every browser.
func (n *Navigator) Close() {
	for _, a := range n.allocators {
		a.cancel()
	}
}

// pick rotates allocators round-robin.
func (n *Navigator) pick() *allocator {
	i := n.next.Add(1) - 1
	return n.allocators[i%uint64(len(n.allocators))]
}

// Navigate renders rawURL. The browser session is detached from ctx so a
// cancelled session lets the in-flight navigation finish or time out;
// ctx still gates acquiring the browser.
func (n *Navigator) Navigate(ctx context.Context, rawURL string, hooks crawler.Hooks) (crawler.NavigateResult, error) {
	release, err := n.limiter.Acquire(ctx, ratelimit.KeyBrowser)
	if err != nil {
		return crawler.NavigateResult{ErrorMessage: err.Error()}, &crawler.FetchError{URL: rawURL, Err: err}
	}
	defer release()

	headers := hooks.Headers(rawURL)

	alloc := n.pick()
	taskCtx, taskCancel := chromedp.NewContext(alloc.ctx)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, n.cfg.NavigationTimeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)
	if alloc.proxy != nil && alloc.proxy.hasAuth() {
		listenProxyAuth(taskCtx, *alloc.proxy)
	}

	start := time.Now()
	html, finalURL, err := n.run(taskCtx, rawURL, headers, alloc.proxy, hooks.AfterLoad)
	result := crawler.NavigateResult{Rendered: true, Duration: time.Since(start)}
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, &crawler.FetchError{URL: rawURL, Err: err}
	}

	status, respHeaders, responseURL := meta.snapshotWithFallbacks(rawURL, finalURL)
	result.FinalURL = responseURL
	result.StatusCode = status
	result.Headers = respHeaders
	result.Content = html
	result.ContentType = filter.ResolveContentType(respHeaders.Get("Content-Type"), []byte(html))
	if status >= http.StatusBadRequest {
		result.ErrorMessage = fmt.Sprintf("status %d", status)
		return result, &crawler.FetchError{URL: rawURL, Err: fmt.Errorf("status %d", status)}
	}
	result.Success = true
	return result, nil
}

func (n *Navigator) run(ctx context.Context, rawURL string, headers http.Header, proxy *Proxy, afterLoad []crawler.AfterLoadHook) (string, string, error) {
	actions := []chromedp.Action{
		n.networkSetupAction(headers, proxy),
		chromedp.EmulateViewport(int64(n.cfg.ViewportWidth), int64(n.cfg.ViewportHeight)),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(n.cfg.SettleDelay),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}

	page := chromedpPage{ctx: ctx}
	for _, hook := range afterLoad {
		if err := hook.AfterLoad(ctx, page); err != nil {
			// Whatever loaded so far is still worth keeping.
			n.logger.Warn("after-load hook failed", zap.String("url", rawURL), zap.Error(err))
		}
	}

	var html, finalURL string
	if err := chromedp.Run(ctx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", "", fmt.Errorf("capture dom: %w", err)
	}
	return html, finalURL, nil
}

func (n *Navigator) networkSetupAction(headers http.Header, proxy *Proxy) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if proxy != nil && proxy.hasAuth() {
			if err := fetch.Enable().WithHandleAuthRequests(true).Do(ctx); err != nil {
				return fmt.Errorf("enable proxy auth: %w", err)
			}
		}
		if n.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(n.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// listenProxyAuth answers proxy credential challenges. With the fetch
// domain enabled every request pauses, so paused requests are resumed.
func listenProxyAuth(ctx context.Context, proxy Proxy) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID))
			}()
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.Username,
					Password: proxy.Password,
				}))
			}()
		}
	})
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

// capture keeps the last document response, which follows redirects.
func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, cloneHeader(m.headers), m.url
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, url := m.snapshot()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
