package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/infofi-harvester/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{SessionID: "s", TS: now, Stage: progress.StageSessionStart},
		{
			SessionID:   "s",
			TS:          now.Add(time.Second),
			Stage:       progress.StagePageDone,
			Site:        "galxe.com",
			Bytes:       2048,
			Records:     7,
			StatusClass: progress.Status2xx,
			Dur:         800 * time.Millisecond,
		},
		{SessionID: "s", TS: now.Add(2 * time.Second), Stage: progress.StagePageFailed, Site: "galxe.com"},
		{SessionID: "s", TS: now.Add(3 * time.Second), Stage: progress.StageEnrichDone, Records: 3},
		{SessionID: "s", TS: now.Add(4 * time.Second), Stage: progress.StageSessionDone, Dur: 4 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 0.0, testutil.ToFloat64(sink.sessionsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.sessionsDone.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pages.WithLabelValues("galxe.com", "done")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pages.WithLabelValues("galxe.com", "failed")))
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.pageBytes.WithLabelValues("galxe.com")), 1e-9)
	require.InDelta(t, 7.0, testutil.ToFloat64(sink.records.WithLabelValues("galxe.com")), 1e-9)
	require.InDelta(t, 3.0, testutil.ToFloat64(sink.enriched), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.pageDuration, "harvest_page_duration_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
