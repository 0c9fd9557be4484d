// Package enrich attaches social engagement data to extracted user
// records. Lookups run one handle at a time through the profile rate
// limiter, and a failure for one handle never touches the others.
package enrich

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/metrics"
	"github.com/JakeFAU/infofi-harvester/internal/policy/ratelimit"
)

const previewRunes = 100

// Config configures a Stage.
type Config struct {
	PostWindow int
	Platforms  []string
}

// Summary counts per-record outcomes of one Enrich call.
type Summary struct {
	Attempted int
	Enriched  int
	Failed    int
	Skipped   int
	Errors    []error
}

// Stage enriches records through a crawler.ProfileClient.
type Stage struct {
	cfg       Config
	client    crawler.ProfileClient
	relevance PostRelevance
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
}

// New builds a Stage. relevance defaults to KeywordRelevance with
// DefaultKeywords.
func New(cfg Config, client crawler.ProfileClient, relevance PostRelevance, limiter *ratelimit.Limiter, logger *zap.Logger) *Stage {
	if cfg.PostWindow <= 0 {
		cfg.PostWindow = 10
	}
	if relevance == nil {
		relevance = KeywordRelevance{Keywords: DefaultKeywords}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		cfg:       cfg,
		client:    client,
		relevance: relevance,
		limiter:   limiter,
		logger:    logger.Named("enrich"),
	}
}

type lookup struct {
	record *crawler.EngagementRecord
	err    error
}

// Enrich looks up every record exposing a social handle and attaches an
// EngagementRecord on success. Records are mutated in place; a handle
// seen twice in one batch is looked up once. Without a client every
// record is skipped.
func (s *Stage) Enrich(ctx context.Context, records []*crawler.UserRecord) Summary {
	var sum Summary
	if s.client == nil {
		sum.Skipped = len(records)
		return sum
	}
	cache := map[string]lookup{}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		handle := NormalizeHandle(rec.SocialHandleCandidate())
		if handle == "" {
			sum.Skipped++
			metrics.ObserveEnrichment("skipped")
			continue
		}
		if ctx.Err() != nil {
			sum.Skipped++
			continue
		}
		sum.Attempted++

		key := strings.ToLower(handle)
		res, ok := cache[key]
		if !ok {
			platform := PlatformFromURL(rec.SourceURL, s.cfg.Platforms)
			res.record, res.err = s.lookup(ctx, handle, platform)
			cache[key] = res
		}
		if res.err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, res.err)
			metrics.ObserveEnrichment("failed")
			continue
		}
		clone := *res.record
		clone.RelevantPosts = append([]crawler.Post(nil), res.record.RelevantPosts...)
		rec.Engagement = &clone
		sum.Enriched++
		metrics.ObserveEnrichment("enriched")
	}
	return sum
}

func (s *Stage) lookup(ctx context.Context, handle, platform string) (*crawler.EngagementRecord, error) {
	release, err := s.limiter.Acquire(ctx, ratelimit.KeyProfile)
	if err != nil {
		return nil, &crawler.EnrichmentError{Handle: handle, Err: err}
	}
	stats, err := s.client.GetProfile(ctx, handle)
	release()
	if err != nil {
		s.logger.Warn("profile lookup failed", zap.String("handle", handle), zap.Error(err))
		return nil, &crawler.EnrichmentError{Handle: handle, Err: err}
	}

	rec := &crawler.EngagementRecord{
		SocialHandle: handle,
		Followers:    stats.Followers,
		Following:    stats.Following,
		PostCount:    stats.PostCount,
		Verified:     stats.Verified,
		Description:  stats.Description,
		Platform:     platform,
	}

	release, err = s.limiter.Acquire(ctx, ratelimit.KeyProfile)
	if err != nil {
		return rec, nil
	}
	posts, err := s.client.GetRecentPosts(ctx, handle, s.cfg.PostWindow)
	release()
	if err != nil {
		// The profile stays attached without post data.
		s.logger.Warn("recent posts failed", zap.String("handle", handle), zap.Error(err))
		return rec, nil
	}

	for _, p := range posts {
		if !s.relevance.Relevant(p, platform) {
			continue
		}
		rec.EngagementScore += p.Engagement()
		p.Text = preview(p.Text)
		rec.RelevantPosts = append(rec.RelevantPosts, p)
	}
	s.logger.Debug("enriched",
		zap.String("handle", handle),
		zap.Int("followers", rec.Followers),
		zap.Int("relevant_posts", len(rec.RelevantPosts)),
		zap.Int("engagement", rec.EngagementScore))
	return rec, nil
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes]) + "..."
}
