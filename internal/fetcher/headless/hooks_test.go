package headless

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

type fakePage struct {
	scrolls   []int
	clicks    []string
	clickable map[string]int
	scrollErr error
}

func (p *fakePage) ScrollBy(_ context.Context, pixels int) error {
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolls = append(p.scrolls, pixels)
	return nil
}

func (p *fakePage) Click(_ context.Context, sel crawler.Selector) (bool, error) {
	p.clicks = append(p.clicks, sel.String())
	if p.clickable[sel.String()] > 0 {
		p.clickable[sel.String()]--
		return true, nil
	}
	return false, nil
}

func recordPauses(pauses *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*pauses = append(*pauses, d)
		return ctx.Err()
	}
}

func TestHeaderHook(t *testing.T) {
	t.Parallel()

	hook := HeaderHook{AcceptLanguage: "en-US,en;q=0.9", Extra: http.Header{"X-Trace": {"1"}}}
	got := hook.BeforeNavigate(crawler.RequestContext{URL: "https://galxe.com"})
	assert.Equal(t, "en-US,en;q=0.9", got.Get("Accept-Language"))
	assert.Equal(t, "1", got.Get("X-Trace"))

	in := http.Header{"Accept-Language": {"de"}}
	got = hook.BeforeNavigate(crawler.RequestContext{Headers: in})
	assert.Equal(t, "de", got.Get("Accept-Language"))
	assert.Empty(t, in.Get("X-Trace"))
}

func TestHooksHeadersChainsHooks(t *testing.T) {
	t.Parallel()

	hooks := crawler.Hooks{BeforeNavigate: []crawler.BeforeNavigateHook{
		HeaderHook{Extra: http.Header{"X-A": {"1"}}},
		nil,
		HeaderHook{AcceptLanguage: "fr"},
	}}
	got := hooks.Headers("https://galxe.com")
	assert.Equal(t, "1", got.Get("X-A"))
	assert.Equal(t, "fr", got.Get("Accept-Language"))
	assert.Empty(t, crawler.Hooks{}.Headers("u"))
}

func TestInteractionHookScrollsThenLoadsMore(t *testing.T) {
	t.Parallel()

	var pauses []time.Duration
	more := crawler.Selector{Text: "Load More"}
	css := crawler.Selector{CSS: ".load-more"}
	page := &fakePage{clickable: map[string]int{css.String(): 2}}
	hook := InteractionHook{
		ScrollCount: 3, ScrollPixels: 500, ScrollDelay: 500 * time.Millisecond,
		LoadMoreAttempts: 5, LoadMoreWait: 2 * time.Second,
		Selectors: []crawler.Selector{more, css},
		pause:     recordPauses(&pauses),
	}

	require.NoError(t, hook.AfterLoad(context.Background(), page))
	assert.Equal(t, []int{500, 500, 500}, page.scrolls)
	assert.Equal(t, []string{
		more.String(), css.String(),
		more.String(), css.String(),
		more.String(), css.String(),
	}, page.clicks)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond,
		2 * time.Second, 2 * time.Second,
	}, pauses)
}

func TestInteractionHookBoundsAttempts(t *testing.T) {
	t.Parallel()

	var pauses []time.Duration
	sel := crawler.Selector{CSS: "#more"}
	page := &fakePage{clickable: map[string]int{sel.String(): 100}}
	hook := InteractionHook{LoadMoreAttempts: 5, Selectors: []crawler.Selector{sel}, pause: recordPauses(&pauses)}

	require.NoError(t, hook.AfterLoad(context.Background(), page))
	assert.Len(t, page.clicks, 5)
	assert.Equal(t, 95, page.clickable[sel.String()])
}

func TestInteractionHookErrors(t *testing.T) {
	t.Parallel()

	var pauses []time.Duration
	page := &fakePage{scrollErr: errors.New("detached")}
	hook := InteractionHook{ScrollCount: 2, pause: recordPauses(&pauses)}
	require.Error(t, hook.AfterLoad(context.Background(), page))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page = &fakePage{}
	hook = InteractionHook{ScrollCount: 5, pause: recordPauses(&pauses)}
	require.ErrorIs(t, hook.AfterLoad(ctx, page), context.Canceled)
	assert.Len(t, page.scrolls, 1)
}

func TestSleepHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
