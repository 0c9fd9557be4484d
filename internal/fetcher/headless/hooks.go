package headless

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// HeaderHook adds fixed request headers before every navigation.
type HeaderHook struct {
	AcceptLanguage string
	Extra          http.Header
}

// BeforeNavigate implements crawler.BeforeNavigateHook.
func (h HeaderHook) BeforeNavigate(req crawler.RequestContext) http.Header {
	out := cloneHeader(req.Headers)
	if out == nil {
		out = http.Header{}
	}
	for k, values := range h.Extra {
		for _, v := range values {
			out.Add(k, v)
		}
	}
	if h.AcceptLanguage != "" && out.Get("Accept-Language") == "" {
		out.Set("Accept-Language", h.AcceptLanguage)
	}
	return out
}

// InteractionHook scrolls the page a fixed number of times, then
// activates "load more" controls until none is found or the attempt
// budget runs out.
type InteractionHook struct {
	ScrollCount      int
	ScrollPixels     int
	ScrollDelay      time.Duration
	LoadMoreAttempts int
	LoadMoreWait     time.Duration
	// Selectors are tried in order; the first one that clicks wins the
	// attempt.
	Selectors []crawler.Selector

	pause func(ctx context.Context, d time.Duration) error
}

// DefaultSelectors are the load-more controls tried when none are
// configured.
func DefaultSelectors() []crawler.Selector {
	return []crawler.Selector{
		{Text: "Load More"},
		{Text: "Show More"},
		{CSS: ".load-more"},
		{CSS: "[data-testid='load-more']"},
		{CSS: "[aria-label='Load more']"},
	}
}

// AfterLoad implements crawler.AfterLoadHook.
func (h InteractionHook) AfterLoad(ctx context.Context, page crawler.PageHandle) error {
	pause := h.pause
	if pause == nil {
		pause = sleep
	}
	for i := 0; i < h.ScrollCount; i++ {
		if err := page.ScrollBy(ctx, h.ScrollPixels); err != nil {
			return fmt.Errorf("scroll %d: %w", i+1, err)
		}
		if err := pause(ctx, h.ScrollDelay); err != nil {
			return err
		}
	}

	for attempt := 0; attempt < h.LoadMoreAttempts; attempt++ {
		clicked, err := h.clickFirst(ctx, page)
		if err != nil {
			return fmt.Errorf("load more attempt %d: %w", attempt+1, err)
		}
		if !clicked {
			return nil
		}
		if err := pause(ctx, h.LoadMoreWait); err != nil {
			return err
		}
	}
	return nil
}

func (h InteractionHook) clickFirst(ctx context.Context, page crawler.PageHandle) (bool, error) {
	for _, sel := range h.Selectors {
		ok, err := page.Click(ctx, sel)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
