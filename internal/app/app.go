// Package app wires configuration into a runnable harvest session and owns
// the lifetime of every long-lived client it creates.
package app

import (
	"context"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/api"
	"github.com/JakeFAU/infofi-harvester/internal/clock/system"
	"github.com/JakeFAU/infofi-harvester/internal/config"
	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/extractor"
	headlessfetcher "github.com/JakeFAU/infofi-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/infofi-harvester/internal/filter"
	"github.com/JakeFAU/infofi-harvester/internal/harvest"
	"github.com/JakeFAU/infofi-harvester/internal/hash/sha256"
	"github.com/JakeFAU/infofi-harvester/internal/id/uuid"
	"github.com/JakeFAU/infofi-harvester/internal/linkscore"
	"github.com/JakeFAU/infofi-harvester/internal/logging"
	"github.com/JakeFAU/infofi-harvester/internal/metrics"
	"github.com/JakeFAU/infofi-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/infofi-harvester/internal/progress"
	progresssinks "github.com/JakeFAU/infofi-harvester/internal/progress/sinks"
	"github.com/JakeFAU/infofi-harvester/internal/report"
)

// Options override pieces Build would otherwise create.
type Options struct {
	Logger *zap.Logger
	// Registerer receives the progress collectors; nil means the default
	// registry.
	Registerer prometheus.Registerer
	// Navigator replaces the navigator selected by fetch.mode.
	Navigator crawler.Navigator
	// Store replaces the blob store selected by storage.backend.
	Store crawler.BlobStore
}

// App holds the wired session and the clients it depends on.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	session *harvest.Session

	hub             *progress.Hub
	state           *progresssinks.StateSink
	apiServer       *api.Server
	browser         *headlessfetcher.Navigator
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	storage         *storage.Client
}

// Build creates every dependency described by cfg. Failure to construct
// the navigator is fatal; missing optional credentials only disable the
// dependent stage.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
	}
	a := &App{cfg: cfg, logger: logger}
	a.logger.Info("building harvest dependencies",
		zap.String("fetch_mode", cfg.Fetch.Mode),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Int("max_depth", cfg.Session.MaxDepth),
		zap.Int("workers", cfg.Session.Workers),
	)
	metrics.Init()

	limiter := newLimiter(cfg)

	chain, err := newChain(cfg)
	if err != nil {
		return nil, err
	}

	navigator := opts.Navigator
	if navigator == nil {
		navigator, err = a.setupNavigator(limiter)
		if err != nil {
			a.closeClients(ctx)
			return nil, fmt.Errorf("%w: %w", crawler.ErrFetch, err)
		}
	}

	blobStore := opts.Store
	if blobStore == nil {
		blobStore, err = a.setupStorage(ctx)
		if err != nil {
			a.closeClients(ctx)
			return nil, err
		}
	}

	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		a.closeClients(ctx)
		return nil, err
	}

	emitter, err := a.setupProgress(opts.Registerer)
	if err != nil {
		a.closeClients(ctx)
		return nil, err
	}

	llmClient := a.setupLLM(ctx, limiter)
	var (
		extractionClient crawler.ExtractionClient
		semantic         crawler.SemanticReducer
		relevance        crawler.LinkRelevance
	)
	if llmClient != nil {
		extractionClient, semantic, relevance = llmClient, llmClient, llmClient
	}

	red := newReducer(cfg, semantic, logger)
	ext := extractor.New(extractor.Config{
		Instruction:   cfg.LLM.Instruction,
		TableFallback: true,
	}, extractionClient, logger)
	ranker := linkscore.New(linkscore.Config{Query: cfg.Links.Query, MaxLinks: cfg.Links.MaxLinks}, relevance, logger)

	var enricher harvest.Enricher
	if stage := a.setupEnrichment(limiter); stage != nil {
		enricher = stage
	}

	a.session, err = harvest.New(sessionConfig(cfg), harvest.Deps{
		Navigator: navigator,
		Hooks:     hooksFrom(cfg),
		Reducer:   red,
		Extractor: ext,
		Ranker:    ranker,
		Enricher:  enricher,
		Chain:     chain,
		Store:     blobStore,
		Publisher: publisher,
		Hasher:    sha256.New(),
		Clock:     system.New(),
		IDs:       uuid.New(""),
		Progress:  emitter,
		Logger:    logger,
	})
	if err != nil {
		a.closeClients(ctx)
		return nil, err
	}

	if cfg.Server.Addr != "" {
		var sessions api.SessionSource
		if a.state != nil {
			sessions = a.state
		}
		a.apiServer = api.NewServer(api.Config{Addr: cfg.Server.Addr, APIKey: cfg.Server.APIKey}, sessions, logger)
	}
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run starts the ops server when configured and runs the session.
func (a *App) Run(ctx context.Context) (harvest.Result, error) {
	if a.apiServer != nil {
		if err := a.apiServer.Start(); err != nil {
			a.logger.Error("ops server failed to start", zap.Error(err))
		}
	}
	return a.session.Run(ctx)
}

// Close flushes progress, stops servers and releases clients.
func (a *App) Close(ctx context.Context) error {
	if a.apiServer != nil {
		if err := a.apiServer.Shutdown(ctx); err != nil {
			a.logger.Warn("ops server shutdown failed", zap.Error(err))
		}
	}
	a.closeClients(ctx)
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	return nil
}

func (a *App) closeClients(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.browser != nil {
		a.browser.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
}

func newLimiter(cfg config.Config) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		DefaultRPS: cfg.Fetch.HostRPS,
		Keys: map[string]ratelimit.KeyConfig{
			ratelimit.KeyBrowser:    {Serial: true},
			ratelimit.KeyExtraction: {RPS: cfg.LLM.RequestsPerSecond, Serial: true},
			ratelimit.KeyProfile:    {Interval: cfg.Enrich.Delay, Serial: true},
		},
	})
}

func newChain(cfg config.Config) (*filter.Chain, error) {
	var patterns *filter.URLPatternFilter
	if len(cfg.Session.URLPatterns) > 0 {
		var err error
		patterns, err = filter.NewURLPatternFilter(cfg.Session.URLPatterns)
		if err != nil {
			return nil, fmt.Errorf("session.url_patterns: %w", err)
		}
	}
	var domains *filter.DomainFilter
	if len(cfg.Session.AllowDomains) > 0 || len(cfg.Session.DenyDomains) > 0 {
		domains = filter.NewDomainFilter(cfg.Session.AllowDomains, cfg.Session.DenyDomains)
	}
	var contentTypes *filter.ContentTypeFilter
	if len(cfg.Session.ContentTypes) > 0 {
		contentTypes = filter.NewContentTypeFilter(cfg.Session.ContentTypes)
	}
	preds := make([]filter.Predicate, 0, 3)
	if domains != nil {
		preds = append(preds, domains)
	}
	if patterns != nil {
		preds = append(preds, patterns)
	}
	if contentTypes != nil {
		preds = append(preds, contentTypes)
	}
	return filter.NewChain(preds...), nil
}

// sessionConfig bounds each page's extraction by llm.extract_timeout, which
// covers every chunk request; llm.timeout applies per request.
func sessionConfig(cfg config.Config) harvest.Config {
	return harvest.Config{
		Seeds:          cfg.Session.Seeds,
		Scope:          scopeFrom(cfg),
		Workers:        cfg.Session.Workers,
		NavTimeout:     cfg.Fetch.NavTimeout,
		ExtractTimeout: cfg.LLM.ExtractTimeout,
		Topic:          cfg.PubSub.TopicName,
		Report:         reportConfig(cfg),
	}
}

func scopeFrom(cfg config.Config) crawler.Scope {
	return crawler.Scope{
		MaxDepth:            cfg.Session.MaxDepth,
		IncludeExternal:     cfg.Session.IncludeExternal,
		AllowedContentTypes: cfg.Session.ContentTypes,
		URLPatterns:         cfg.Session.URLPatterns,
		AllowDomains:        cfg.Session.AllowDomains,
		DenyDomains:         cfg.Session.DenyDomains,
		Proxies:             cfg.Session.Proxies,
		MaxPagesPerSeed:     cfg.Session.MaxPagesPerSeed,
	}
}

func hooksFrom(cfg config.Config) crawler.Hooks {
	selectors := make([]crawler.Selector, 0, len(cfg.Fetch.LoadMoreTexts)+len(cfg.Fetch.LoadMoreSelectors))
	for _, text := range cfg.Fetch.LoadMoreTexts {
		if strings.TrimSpace(text) != "" {
			selectors = append(selectors, crawler.Selector{Text: text})
		}
	}
	for _, css := range cfg.Fetch.LoadMoreSelectors {
		if strings.TrimSpace(css) != "" {
			selectors = append(selectors, crawler.Selector{CSS: css})
		}
	}
	if len(selectors) == 0 {
		selectors = headlessfetcher.DefaultSelectors()
	}
	return crawler.Hooks{
		BeforeNavigate: []crawler.BeforeNavigateHook{
			headlessfetcher.HeaderHook{AcceptLanguage: cfg.Fetch.AcceptLanguage},
		},
		AfterLoad: []crawler.AfterLoadHook{
			headlessfetcher.InteractionHook{
				ScrollCount:      cfg.Fetch.ScrollCount,
				ScrollPixels:     cfg.Fetch.ScrollPixels,
				ScrollDelay:      cfg.Fetch.ScrollDelay,
				LoadMoreAttempts: cfg.Fetch.LoadMoreAttempts,
				LoadMoreWait:     cfg.Fetch.LoadMoreWait,
				Selectors:        selectors,
			},
		},
	}
}

func reportConfig(cfg config.Config) report.Config {
	return report.Config{
		FollowerThreshold:   cfg.Report.FollowerThreshold,
		EngagementThreshold: cfg.Report.EngagementThreshold,
		TopN:                cfg.Report.TopN,
		DisparityRatio:      cfg.Report.DisparityRatio,
	}
}
