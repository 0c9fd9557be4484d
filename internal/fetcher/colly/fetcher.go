// Package collyfetcher implements the static Navigator with gocolly: a
// plain HTTP GET with no JavaScript, so AfterLoad hooks never run. It also
// provides the hybrid Navigator that promotes JS-rendered pages to a
// browser.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/proxy"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/filter"
	"github.com/JakeFAU/infofi-harvester/internal/policy/ratelimit"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// Proxies are "host:port" or "host:port:user:pass" entries rotated
	// round-robin.
	Proxies []string
}

// Fetcher implements crawler.Navigator using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	// Dedup belongs to the frontier; hybrid mode may also refetch.
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if len(cfg.Proxies) > 0 {
		urls, err := proxyURLs(cfg.Proxies)
		if err != nil {
			return nil, err
		}
		switcher, err := proxy.RoundRobinProxySwitcher(urls...)
		if err != nil {
			return nil, fmt.Errorf("proxy switcher: %w", err)
		}
		c.SetProxyFunc(switcher)
	}
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       limiter,
		logger:        logger.Named("static"),
	}, nil
}

// Navigate performs a single GET. Only BeforeNavigate hooks apply.
func (f *Fetcher) Navigate(ctx context.Context, rawURL string, hooks crawler.Hooks) (crawler.NavigateResult, error) {
	if err := f.limiter.WaitHost(ctx, rawURL); err != nil {
		return crawler.NavigateResult{ErrorMessage: err.Error()}, &crawler.FetchError{URL: rawURL, Err: err}
	}

	start := time.Now()
	result, err := f.visit(ctx, f.baseCollector.Clone(), rawURL, hooks.Headers(rawURL), start)
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		return result, &crawler.FetchError{URL: rawURL, Err: err}
	}
	if result.StatusCode >= http.StatusBadRequest {
		result.ErrorMessage = fmt.Sprintf("status %d", result.StatusCode)
		return result, &crawler.FetchError{URL: rawURL, Err: fmt.Errorf("status %d", result.StatusCode)}
	}
	result.Success = true
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	headers http.Header,
	start time.Time,
	result *crawler.NavigateResult,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		var respHeaders http.Header
		if r.Headers != nil {
			respHeaders = r.Headers.Clone()
		}
		*result = crawler.NavigateResult{
			Content:     string(r.Body),
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: filter.ResolveContentType(respHeaders.Get("Content-Type"), r.Body),
			Headers:     respHeaders,
			Duration:    time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

type visitOutcome struct {
	result crawler.NavigateResult
	err    error
}

// visit runs the collector on its own goroutine. The callbacks only write
// goroutine-local state, so an abandoned visit cannot race with the caller.
func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, rawURL string, headers http.Header, start time.Time) (crawler.NavigateResult, error) {
	done := make(chan visitOutcome, 1)
	go func() {
		var (
			out     visitOutcome
			respErr error
		)
		f.configureCollectorHooks(collector, headers, start, &out.result, &respErr)
		switch err := collector.Visit(rawURL); {
		case err != nil:
			out.err = fmt.Errorf("colly visit failed: %w", err)
		case respErr != nil:
			out.err = fmt.Errorf("colly response failed: %w", respErr)
		}
		done <- out
	}()

	select {
	case <-ctx.Done():
		return crawler.NavigateResult{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case out := <-done:
		return out.result, out.err
	}
}

func proxyURLs(entries []string) ([]string, error) {
	var out []string
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		parts := strings.Split(e, ":")
		switch len(parts) {
		case 2:
			out = append(out, "http://"+e)
		case 4:
			u := url.URL{
				Scheme: "http",
				Host:   parts[0] + ":" + parts[1],
				User:   url.UserPassword(parts[2], parts[3]),
			}
			out = append(out, u.String())
		default:
			return nil, fmt.Errorf("invalid proxy %q: want host:port or host:port:user:pass", e)
		}
	}
	return out, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
