package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacing(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "extraction"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "extraction"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.WaitHost(ctx, "https://a.com/1"))
	start := time.Now()
	require.NoError(t, l.WaitHost(ctx, "https://b.com/1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterIntervalOverride(t *testing.T) {
	t.Parallel()

	l := New(Config{Keys: map[string]KeyConfig{
		KeyProfile: {Interval: 100 * time.Millisecond},
	}})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, KeyProfile))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, KeyProfile))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "unlimited"))
	require.NoError(t, l.Wait(ctx, "unlimited"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{Keys: map[string]KeyConfig{KeyProfile: {Interval: time.Hour}}})
	require.NoError(t, l.Wait(context.Background(), KeyProfile))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, KeyProfile))
}

func TestLimiterAcquireSerializesCalls(t *testing.T) {
	t.Parallel()

	l := New(Config{Keys: map[string]KeyConfig{KeyExtraction: {Serial: true}}})
	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		wg       sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), KeyExtraction)
			if err != nil {
				t.Error(err)
				return
			}
			defer release()
			n := inFlight.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestLimiterAcquireGateCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{Keys: map[string]KeyConfig{KeyBrowser: {Serial: true}}})
	release, err := l.Acquire(context.Background(), KeyBrowser)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, KeyBrowser)
	require.Error(t, err)

	release()
	release()
	again, err := l.Acquire(context.Background(), KeyBrowser)
	require.NoError(t, err)
	again()
}

func TestNilLimiterIsNoop(t *testing.T) {
	t.Parallel()

	var l *Limiter
	require.NoError(t, l.Wait(context.Background(), "x"))
	release, err := l.Acquire(context.Background(), "x")
	require.NoError(t, err)
	release()
}
