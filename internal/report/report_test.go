package report

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

func record(score string, followers, engagement int) crawler.UserRecord {
	return crawler.UserRecord{
		HandleOrID: fmt.Sprintf("u%d_%d", followers, engagement),
		ScoreRaw:   score,
		Engagement: &crawler.EngagementRecord{Followers: followers, EngagementScore: engagement},
	}
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	tests := map[string]float64{
		"1,234 XP":     1234,
		"1,234":        1234,
		"900 Points":   900,
		"42":           42,
		"12.5":         12.5,
		" 7 ":          7,
		"N/A":          0,
		"":             0,
		"NaN":          0,
		"1,000,000 XP": 1000000,
	}
	for in, want := range tests {
		assert.InDelta(t, want, ParseScore(in), 1e-9, in)
	}
}

func TestAggregateFollowerBuckets(t *testing.T) {
	t.Parallel()

	var recs []crawler.UserRecord
	for i := 0; i < 10; i++ {
		recs = append(recs, record("100", 20000+i, 0))
		recs = append(recs, record("10", 500+i, 0))
	}
	r := Aggregate(recs, DefaultConfig())

	assert.Equal(t, 10, r.HighFollowers.Count)
	assert.Equal(t, 10, r.LowFollowers.Count)
	assert.InDelta(t, 100.0, r.HighFollowers.MeanScore, 1e-9)
	assert.InDelta(t, 10.0, r.LowFollowers.MeanScore, 1e-9)
	assert.Equal(t, FollowerDisproportionate, r.FollowerVerdict)
	assert.Equal(t, EngagementNoData, r.EngagementVerdict)
	assert.Empty(t, r.Pairs)
}

func TestAggregateExcludesUnenriched(t *testing.T) {
	t.Parallel()

	recs := []crawler.UserRecord{
		{HandleOrID: "a", ScoreRaw: "500"},
		record("50", 0, 0),
		record("20", 100, 0),
	}
	r := Aggregate(recs, DefaultConfig())
	assert.Equal(t, 3, r.TotalRecords)
	assert.Equal(t, 2, r.EnrichedCount)
	assert.Equal(t, 0, r.HighFollowers.Count)
	assert.Equal(t, 1, r.LowFollowers.Count)
	assert.InDelta(t, 20.0, r.LowFollowers.MeanScore, 1e-9)
	assert.Equal(t, FollowerFair, r.FollowerVerdict)
}

func TestAggregateEngagementCorrelation(t *testing.T) {
	t.Parallel()

	recs := []crawler.UserRecord{record("10", 50, 50), record("100", 50, 500)}
	r := Aggregate(recs, DefaultConfig())

	require.Len(t, r.TopPairs, 2)
	assert.Equal(t, 500, r.TopPairs[0].Engagement)
	assert.InDelta(t, 100.0, r.TopPairs[0].Score, 1e-9)
	assert.InDelta(t, 100.0, r.HighEngagement.MeanScore, 1e-9)
	assert.InDelta(t, 10.0, r.LowEngagement.MeanScore, 1e-9)
	assert.Equal(t, EngagementCorrelates, r.EngagementVerdict)
	assert.True(t, r.HasCorrelation)
	assert.InDelta(t, 1.0, r.Correlation, 1e-9)
}

func TestAggregatePairsFilterAndTopN(t *testing.T) {
	t.Parallel()

	recs := []crawler.UserRecord{
		record("N/A", 10, 900),
		record("5", 10, 0),
	}
	for i := 1; i <= 7; i++ {
		recs = append(recs, record("10", 10, i*10))
	}
	r := Aggregate(recs, Config{FollowerThreshold: 10000, EngagementThreshold: 100})

	assert.Len(t, r.Pairs, 7)
	require.Len(t, r.TopPairs, 5)
	assert.Equal(t, 70, r.TopPairs[0].Engagement)
	assert.Equal(t, 30, r.TopPairs[4].Engagement)
	assert.Equal(t, EngagementNeutral, r.EngagementVerdict)
	assert.False(t, r.HasCorrelation)
}

func TestAggregateNeutralFollowerVerdict(t *testing.T) {
	t.Parallel()

	r := Aggregate([]crawler.UserRecord{record("12", 20000, 0), record("10", 10, 0)}, DefaultConfig())
	assert.Equal(t, FollowerNeutral, r.FollowerVerdict)

	r = Aggregate(nil, DefaultConfig())
	assert.Equal(t, FollowerNeutral, r.FollowerVerdict)
	assert.Zero(t, r.TotalRecords)
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	recs := []crawler.UserRecord{record("10", 50, 50), record("100", 50000, 500)}
	recs[1].Engagement.SocialHandle = "whale"
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Aggregate(recs, DefaultConfig())))

	out := buf.String()
	assert.Contains(t, out, "Analysis of 2 users (2 enriched):")
	assert.Contains(t, out, "Users with >10000 followers: 1")
	assert.Contains(t, out, "  Average points: 100.00")
	assert.Contains(t, out, "@whale engagement: 500 -> points: 100")
	assert.Contains(t, out, "correlates with higher points (100 vs 10)")
	assert.Contains(t, out, "larger accounts seem to have significantly higher points")
}

func TestWriteMarkdown(t *testing.T) {
	t.Parallel()

	recs := []crawler.UserRecord{record("10", 50, 50), record("100", 50000, 500)}
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, Aggregate(recs, DefaultConfig())))

	out := buf.String()
	assert.Contains(t, out, "# Harvest Analysis")
	assert.Contains(t, out, "## Followers vs Points")
	assert.Contains(t, out, "## Engagement vs Points")
	assert.Contains(t, out, "Pearson correlation: 1.000")
	assert.Contains(t, out, "Engagement")

	buf.Reset()
	require.NoError(t, WriteMarkdown(&buf, Aggregate(nil, DefaultConfig())))
	assert.Contains(t, buf.String(), "No users with both engagement and points.")
}
