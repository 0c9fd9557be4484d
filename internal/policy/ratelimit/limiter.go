// Package ratelimit paces calls to external collaborators. Each key (a
// collaborator name or a host) gets its own token bucket; keys marked
// serial also admit only one in-flight call at a time.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/infofi-harvester/internal/metrics"
)

// Collaborator keys used by the harvest pipeline.
const (
	KeyBrowser    = "browser"
	KeyExtraction = "extraction"
	KeyProfile    = "profile"
)

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	Keys         map[string]KeyConfig
}

// KeyConfig overrides the defaults for one key.
type KeyConfig struct {
	// Interval is the minimum spacing between calls; it wins over RPS.
	Interval time.Duration
	RPS      float64
	Burst    int
	// Serial admits a single in-flight call.
	Serial bool
}

// Limiter manages per-key rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	gates        map[string]chan struct{}
	keys         map[string]KeyConfig
	defaultRate  rate.Limit
	defaultBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	keys := make(map[string]KeyConfig, len(cfg.Keys))
	for k, v := range cfg.Keys {
		keys[k] = v
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		gates:        make(map[string]chan struct{}),
		keys:         keys,
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token for key is available, respecting ctx.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	limiter := l.bucket(key)
	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(key, waited)
	}
	return nil
}

// WaitHost waits on the bucket for the host of rawURL.
func (l *Limiter) WaitHost(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	return l.Wait(ctx, host)
}

// Acquire waits for the key's serial gate (when configured) and a token.
// The returned release must be called once the call completes.
func (l *Limiter) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	gate := l.gate(key)
	if gate != nil {
		select {
		case gate <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("rate limit gate %s: %w", key, ctx.Err())
		}
	}
	release := func() {
		if gate != nil {
			<-gate
		}
	}
	if err := l.Wait(ctx, key); err != nil {
		release()
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters[key]
	if !exists {
		r, burst := l.defaultRate, l.defaultBurst
		if kc, ok := l.keys[key]; ok {
			switch {
			case kc.Interval > 0:
				r = rate.Every(kc.Interval)
			case kc.RPS > 0:
				r = rate.Limit(kc.RPS)
			}
			if kc.Burst > 0 {
				burst = kc.Burst
			}
		}
		limiter = rate.NewLimiter(r, burst)
		l.limiters[key] = limiter
	}
	return limiter
}

func (l *Limiter) gate(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	kc, ok := l.keys[key]
	if !ok || !kc.Serial {
		return nil
	}
	g, exists := l.gates[key]
	if !exists {
		g = make(chan struct{}, 1)
		l.gates[key] = g
	}
	return g
}
