// Package harvest runs a deep-crawl session: each seed is expanded
// breadth-first through its own frontier, every fetched page is reduced and
// extracted, per-seed artifacts are written as soon as a seed finishes, and
// the collected records are enriched and aggregated at the end.
package harvest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/infofi-harvester/internal/clock/system"
	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/enrich"
	"github.com/JakeFAU/infofi-harvester/internal/filter"
	"github.com/JakeFAU/infofi-harvester/internal/frontier"
	"github.com/JakeFAU/infofi-harvester/internal/hash/sha256"
	"github.com/JakeFAU/infofi-harvester/internal/id/uuid"
	"github.com/JakeFAU/infofi-harvester/internal/progress"
	"github.com/JakeFAU/infofi-harvester/internal/report"
)

const (
	defaultNavTimeout     = 60 * time.Second
	defaultExtractTimeout = 5 * time.Minute
)

// Reducer turns fetched HTML into extraction input.
type Reducer interface {
	Reduce(ctx context.Context, pageURL, html string) (crawler.ReducedContent, error)
}

// Extractor produces the structured result for a reduced page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string, reduced crawler.ReducedContent) (crawler.ExtractionResult, error)
}

// Ranker scores discovered links.
type Ranker interface {
	Rank(ctx context.Context, links []crawler.Link) []crawler.ScoredLink
}

// Enricher attaches engagement data to records in place.
type Enricher interface {
	Enrich(ctx context.Context, records []*crawler.UserRecord) enrich.Summary
}

// Config controls a Session.
type Config struct {
	Seeds []string
	Scope crawler.Scope
	// Workers bounds how many seed domains are crawled at once. Seeds that
	// share a host always run one after another.
	Workers        int
	NavTimeout     time.Duration
	ExtractTimeout time.Duration
	// Topic receives one notice per written seed artifact when set.
	Topic  string
	Report report.Config
}

// Deps are the collaborators a Session drives. Navigator, Reducer,
// Extractor and Store are required.
type Deps struct {
	Navigator crawler.Navigator
	Hooks     crawler.Hooks
	Reducer   Reducer
	Extractor Extractor
	Ranker    Ranker
	Enricher  Enricher
	Chain     *filter.Chain
	Store     crawler.BlobStore
	Publisher crawler.Publisher
	Hasher    crawler.Hasher
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
	Progress  progress.Emitter
	Logger    *zap.Logger
}

// SeedResult is the outcome of one seed crawl.
type SeedResult struct {
	Artifact crawler.SeedArtifact
	DataURI  string
	RawURI   string
	// Skipped is set when the seed was invalid or already visited by an
	// earlier seed of the session.
	Skipped bool
	Err     error
}

// Result summarizes a finished session.
type Result struct {
	SessionID  string
	Seeds      []SeedResult
	Records    []crawler.UserRecord
	Enrichment enrich.Summary
	Report     report.Report
	Canceled   bool
}

// Pages counts the page artifacts across every seed.
func (r Result) Pages() int {
	n := 0
	for _, s := range r.Seeds {
		n += len(s.Artifact.Pages)
	}
	return n
}

// Session crawls a fixed seed list once.
type Session struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New validates deps and fills defaults.
func New(cfg Config, deps Deps) (*Session, error) {
	switch {
	case deps.Navigator == nil:
		return nil, fmt.Errorf("%w: navigator is required", crawler.ErrConfiguration)
	case deps.Reducer == nil:
		return nil, fmt.Errorf("%w: reducer is required", crawler.ErrConfiguration)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: extractor is required", crawler.ErrConfiguration)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: blob store is required", crawler.ErrConfiguration)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = defaultExtractTimeout
	}
	if cfg.Scope.MaxDepth < 0 {
		cfg.Scope.MaxDepth = 0
	}
	if deps.Hasher == nil {
		deps.Hasher = sha256.New()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New("")
	}
	if deps.Progress == nil {
		deps.Progress = progress.Discard
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Session{cfg: cfg, deps: deps, logger: deps.Logger.Named("harvest")}, nil
}

// Run crawls every seed, writes the per-seed artifacts, enriches the
// collected records and aggregates them. Node and record failures are
// recorded in the artifacts; only an empty seed list is fatal. Cancelling
// ctx stops frontier expansion; the in-flight fetch runs to completion or
// its timeout and the partial seed artifact is still written.
func (s *Session) Run(ctx context.Context) (Result, error) {
	sessionID, err := s.deps.IDs.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate session id: %w", err)
	}
	res := Result{SessionID: sessionID}
	logger := s.logger.With(zap.String("session_id", sessionID))
	started := s.deps.Clock.Now()

	seeds := cleanSeeds(s.cfg.Seeds)
	if len(seeds) == 0 {
		s.emit(progress.Event{SessionID: sessionID, Stage: progress.StageSessionError, Note: crawler.ErrNoSeeds.Error()})
		return res, crawler.ErrNoSeeds
	}
	s.emit(progress.Event{SessionID: sessionID, Stage: progress.StageSessionStart, Note: fmt.Sprintf("%d seeds", len(seeds))})
	logger.Info("session started", zap.Int("seeds", len(seeds)), zap.Int("max_depth", s.cfg.Scope.MaxDepth))

	visited := frontier.NewVisited()
	res.Seeds = make([]SeedResult, len(seeds))
	for i, seed := range seeds {
		res.Seeds[i] = SeedResult{Artifact: crawler.SeedArtifact{SessionID: sessionID, SeedURL: seed}, Skipped: true}
	}
	s.crawlSeeds(ctx, sessionID, seeds, visited, res.Seeds)
	res.Canceled = ctx.Err() != nil

	var records []*crawler.UserRecord
	for i := range res.Seeds {
		pages := res.Seeds[i].Artifact.Pages
		for p := range pages {
			for r := range pages[p].Records {
				records = append(records, &pages[p].Records[r])
			}
		}
	}

	if s.deps.Enricher != nil && len(records) > 0 && !res.Canceled {
		res.Enrichment = s.enrich(ctx, sessionID, records)
		if res.Enrichment.Enriched > 0 {
			s.rewriteEnriched(ctx, sessionID, res.Seeds)
		}
	}

	res.Records = make([]crawler.UserRecord, 0, len(records))
	for _, rec := range records {
		res.Records = append(res.Records, *rec)
	}
	res.Report = report.Aggregate(res.Records, s.cfg.Report)

	note := ""
	if res.Canceled {
		note = "canceled"
	}
	s.emit(progress.Event{
		SessionID: sessionID,
		Stage:     progress.StageSessionDone,
		Records:   len(res.Records),
		Dur:       s.deps.Clock.Now().Sub(started),
		Note:      note,
	})
	logger.Info("session finished",
		zap.Int("pages", res.Pages()),
		zap.Int("records", len(res.Records)),
		zap.Int("enriched", res.Enrichment.Enriched),
		zap.Bool("canceled", res.Canceled),
	)
	return res, nil
}

// crawlSeeds fills out[i] for seeds[i]. With one worker seeds run strictly
// in order; otherwise seeds are grouped by host and groups run in parallel.
func (s *Session) crawlSeeds(ctx context.Context, sessionID string, seeds []string, visited frontier.VisitTracker, out []SeedResult) {
	if s.cfg.Workers <= 1 {
		for i, seed := range seeds {
			if ctx.Err() != nil {
				return
			}
			out[i] = s.runSeed(ctx, sessionID, seed, visited)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, group := range groupByHost(seeds) {
		g.Go(func() error {
			for _, i := range group {
				if ctx.Err() != nil {
					return nil
				}
				out[i] = s.runSeed(ctx, sessionID, seeds[i], visited)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Session) runSeed(ctx context.Context, sessionID, seed string, visited frontier.VisitTracker) SeedResult {
	logger := s.logger.With(zap.String("session_id", sessionID), zap.String("seed", seed))
	sched := frontier.New(s.cfg.Scope, s.deps.Chain, visited)
	sr := SeedResult{Artifact: crawler.SeedArtifact{SessionID: sessionID, SeedURL: seed}}
	if sched.Submit([]string{seed}) == 0 {
		logger.Warn("seed skipped: invalid or already visited")
		sr.Skipped = true
		return sr
	}

	sr.Artifact.StartedAt = s.deps.Clock.Now()
	s.emit(progress.Event{SessionID: sessionID, Stage: progress.StageSeedStart, Seed: seed})
	logger.Info("seed started")

	for ctx.Err() == nil {
		node, ok := sched.Next()
		if !ok {
			break
		}
		page := s.processNode(ctx, sessionID, sched, node)
		sr.Artifact.Pages = append(sr.Artifact.Pages, page)
	}
	sr.Artifact.CompletedAt = s.deps.Clock.Now()

	sr.DataURI, sr.RawURI, sr.Err = s.writeSeed(ctx, &sr.Artifact)
	if sr.Err != nil {
		logger.Error("write seed artifacts failed", zap.Error(sr.Err))
	} else {
		s.notify(ctx, sr)
	}

	records := len(sr.Artifact.Records())
	note := ""
	if sr.Err != nil {
		note = sr.Err.Error()
	}
	s.emit(progress.Event{
		SessionID: sessionID,
		Stage:     progress.StageSeedDone,
		Seed:      seed,
		Records:   records,
		Dur:       sr.Artifact.CompletedAt.Sub(sr.Artifact.StartedAt),
		Note:      note,
	})
	logger.Info("seed finished",
		zap.Int("pages", len(sr.Artifact.Pages)),
		zap.Int("records", records),
		zap.String("uri", sr.DataURI),
	)
	return sr
}

func (s *Session) enrich(ctx context.Context, sessionID string, records []*crawler.UserRecord) enrich.Summary {
	start := s.deps.Clock.Now()
	sum := s.deps.Enricher.Enrich(ctx, records)
	s.emit(progress.Event{
		SessionID: sessionID,
		Stage:     progress.StageEnrichDone,
		Records:   sum.Enriched,
		Dur:       s.deps.Clock.Now().Sub(start),
		Note:      fmt.Sprintf("attempted=%d failed=%d skipped=%d", sum.Attempted, sum.Failed, sum.Skipped),
	})
	for _, err := range sum.Errors {
		s.logger.Debug("record not enriched", zap.String("session_id", sessionID), zap.Error(err))
	}
	return sum
}

func (s *Session) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = s.deps.Clock.Now()
	}
	s.deps.Progress.Emit(evt)
}

func cleanSeeds(seeds []string) []string {
	out := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if seed = strings.TrimSpace(seed); seed != "" {
			out = append(out, seed)
		}
	}
	return out
}

// groupByHost returns seed indexes grouped by host, groups ordered by
// first appearance.
func groupByHost(seeds []string) [][]int {
	index := map[string]int{}
	var groups [][]int
	for i, seed := range seeds {
		host := crawler.Hostname(seed)
		g, ok := index[host]
		if !ok {
			g = len(groups)
			index[host] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
