// Package linkscore ranks a page's outbound links against a fixed
// relevance query. Scores only order siblings within a depth; they never
// decide admission.
package linkscore

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// DefaultQuery is the relevance query links are scored against.
const DefaultQuery = "leaderboard profile user quest stats ranking score points"

// DefaultMaxLinks is how many links per page are scored.
const DefaultMaxLinks = 15

// Config configures a Scorer.
type Config struct {
	Query    string
	MaxLinks int
}

// Scorer attaches relevance scores to links.
type Scorer struct {
	cfg       Config
	relevance crawler.LinkRelevance
	fallback  crawler.LinkRelevance
	logger    *zap.Logger
}

// New builds a Scorer. relevance may be nil, in which case keyword overlap
// is used.
func New(cfg Config, relevance crawler.LinkRelevance, logger *zap.Logger) *Scorer {
	if strings.TrimSpace(cfg.Query) == "" {
		cfg.Query = DefaultQuery
	}
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = DefaultMaxLinks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := KeywordOverlap{}
	if relevance == nil {
		relevance = fallback
	}
	return &Scorer{cfg: cfg, relevance: relevance, fallback: fallback, logger: logger.Named("linkscore")}
}

// Rank scores the first MaxLinks links and returns every link, in input
// order; links past the limit get score zero. A relevance failure falls
// back to keyword overlap.
func (s *Scorer) Rank(ctx context.Context, links []crawler.Link) []crawler.ScoredLink {
	if len(links) == 0 {
		return nil
	}
	n := min(len(links), s.cfg.MaxLinks)
	head := links[:n]

	scored, err := s.relevance.Score(ctx, head, s.cfg.Query)
	if err != nil || len(scored) != len(head) {
		if err != nil {
			s.logger.Warn("link relevance failed, using keyword overlap", zap.Error(err))
		}
		scored, _ = s.fallback.Score(ctx, head, s.cfg.Query)
	}

	out := make([]crawler.ScoredLink, 0, len(links))
	out = append(out, scored...)
	for _, l := range links[n:] {
		out = append(out, crawler.ScoredLink{Link: l})
	}
	return out
}

// KeywordOverlap scores a link by the share of query terms found in its
// URL path and anchor text.
type KeywordOverlap struct{}

// Score implements crawler.LinkRelevance.
func (KeywordOverlap) Score(_ context.Context, links []crawler.Link, query string) ([]crawler.ScoredLink, error) {
	terms := strings.Fields(strings.ToLower(query))
	out := make([]crawler.ScoredLink, len(links))
	for i, l := range links {
		out[i] = crawler.ScoredLink{Link: l}
		if len(terms) == 0 {
			continue
		}
		hay := strings.ToLower(crawler.StripScheme(l.URL) + " " + l.Text)
		hits := 0
		for _, term := range terms {
			if strings.Contains(hay, term) {
				hits++
			}
		}
		out[i].Score = float64(hits) / float64(len(terms))
	}
	return out, nil
}
