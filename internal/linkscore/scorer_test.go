package linkscore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

type fakeRelevance struct {
	calls [][]crawler.Link
	query string
	err   error
}

func (f *fakeRelevance) Score(_ context.Context, links []crawler.Link, query string) ([]crawler.ScoredLink, error) {
	f.calls = append(f.calls, links)
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	out := make([]crawler.ScoredLink, len(links))
	for i, l := range links {
		out[i] = crawler.ScoredLink{Link: l, Score: 0.9}
	}
	return out, nil
}

func links(n int) []crawler.Link {
	out := make([]crawler.Link, n)
	for i := range out {
		out[i] = crawler.Link{URL: fmt.Sprintf("https://galxe.com/p/%d", i)}
	}
	return out
}

func TestRankScoresOnlyFirstK(t *testing.T) {
	t.Parallel()

	rel := &fakeRelevance{}
	s := New(Config{}, rel, nil)
	out := s.Rank(context.Background(), links(20))

	require.Len(t, out, 20)
	require.Len(t, rel.calls, 1)
	assert.Len(t, rel.calls[0], DefaultMaxLinks)
	assert.Equal(t, DefaultQuery, rel.query)
	for i, l := range out {
		assert.Equal(t, fmt.Sprintf("https://galxe.com/p/%d", i), l.URL)
		if i < DefaultMaxLinks {
			assert.InDelta(t, 0.9, l.Score, 1e-9)
		} else {
			assert.Zero(t, l.Score)
		}
	}
}

func TestRankFallsBackOnError(t *testing.T) {
	t.Parallel()

	rel := &fakeRelevance{err: errors.New("down")}
	s := New(Config{MaxLinks: 2, Query: "leaderboard quest"}, rel, nil)
	out := s.Rank(context.Background(), []crawler.Link{
		{URL: "https://galxe.com/leaderboard", Text: "Top quest users"},
		{URL: "https://galxe.com/about", Text: "About"},
	})
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, out[0].Score, 1e-9)
	assert.Zero(t, out[1].Score)
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, New(Config{}, nil, nil).Rank(context.Background(), nil))
}

func TestKeywordOverlap(t *testing.T) {
	t.Parallel()

	out, err := KeywordOverlap{}.Score(context.Background(), []crawler.Link{
		{URL: "https://galxe.com/user/alice", Text: "Profile"},
		{URL: "https://galxe.com/blog"},
	}, "user profile stats points")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0].Score, 1e-9)
	assert.Zero(t, out[1].Score)
}
