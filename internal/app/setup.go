package app

import (
	"context"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/config"
	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/enrich"
	collyfetcher "github.com/JakeFAU/infofi-harvester/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/infofi-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/infofi-harvester/internal/headless/detector"
	"github.com/JakeFAU/infofi-harvester/internal/llm"
	"github.com/JakeFAU/infofi-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/infofi-harvester/internal/profile"
	"github.com/JakeFAU/infofi-harvester/internal/progress"
	progresssinks "github.com/JakeFAU/infofi-harvester/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/infofi-harvester/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/infofi-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/infofi-harvester/internal/reducer"
	gcsstorage "github.com/JakeFAU/infofi-harvester/internal/storage/gcs"
	localstorage "github.com/JakeFAU/infofi-harvester/internal/storage/local"
	memorystorage "github.com/JakeFAU/infofi-harvester/internal/storage/memory"
)

const pingTimeout = 5 * time.Second

func (a *App) setupNavigator(limiter *ratelimit.Limiter) (crawler.Navigator, error) {
	cfg := a.cfg
	static := func() (crawler.Navigator, error) {
		f, err := collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.Fetch.UserAgent,
			RespectRobots: cfg.Fetch.RespectRobots,
			Timeout:       cfg.Fetch.NavTimeout,
			Proxies:       cfg.Session.Proxies,
		}, limiter, a.logger)
		if err != nil {
			return nil, fmt.Errorf("static fetcher init failed: %w", err)
		}
		return f, nil
	}
	browser := func() (crawler.Navigator, error) {
		proxies, err := headlessfetcher.ParseProxies(cfg.Session.Proxies)
		if err != nil {
			return nil, fmt.Errorf("session.proxies: %w", err)
		}
		nav, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			Headless:          cfg.Fetch.Headless,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: cfg.Fetch.NavTimeout,
			ProfileDir:        cfg.Fetch.ProfileDir,
			ViewportWidth:     cfg.Fetch.ViewportWidth,
			ViewportHeight:    cfg.Fetch.ViewportHeight,
			Proxies:           proxies,
		}, limiter, a.logger)
		if err != nil {
			return nil, fmt.Errorf("browser init failed: %w", err)
		}
		a.browser = nav
		return nav, nil
	}

	switch cfg.Fetch.Mode {
	case config.ModeStatic:
		a.logger.Info("using static fetcher", zap.Bool("respect_robots", cfg.Fetch.RespectRobots))
		return static()
	case config.ModeHybrid:
		s, err := static()
		if err != nil {
			return nil, err
		}
		b, err := browser()
		if err != nil {
			return nil, err
		}
		a.logger.Info("using hybrid fetcher", zap.Int("promotion_threshold", cfg.Fetch.PromotionThreshold))
		return collyfetcher.NewHybrid(s, b, detector.NewHeuristic(cfg.Fetch.PromotionThreshold), a.logger), nil
	default:
		a.logger.Info("using browser fetcher",
			zap.Bool("headless", cfg.Fetch.Headless),
			zap.Int("proxies", len(cfg.Session.Proxies)))
		return browser()
	}
}

func (a *App) setupStorage(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		var err error
		a.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcsstorage.New(a.storage, gcsstorage.Config{
			Bucket: a.cfg.Storage.Bucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.Bucket))
		return store, nil
	case config.BackendMemory:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	default:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local storage backend", zap.String("path", store.BaseDir()))
		return store, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Debug("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher = a.pubsubClient.Publisher(a.cfg.PubSub.TopicName)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(a.pubsubPublisher), nil
}

// setupProgress always installs the state sink so the ops server can
// report the running session.
func (a *App) setupProgress(reg prometheus.Registerer) (progress.Emitter, error) {
	a.state = progresssinks.NewStateSink()
	sinkList := []progress.Sink{a.state}
	if a.cfg.Progress.Log {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	if a.cfg.Progress.Prometheus {
		promSink, err := progresssinks.NewPrometheusSink(reg)
		if err != nil {
			return nil, fmt.Errorf("progress prometheus sink: %w", err)
		}
		sinkList = append(sinkList, promSink)
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress_hub")}, sinkList...)
	a.logger.Debug("progress hub initialized", zap.Int("sinks", len(sinkList)))
	return a.hub, nil
}

// setupLLM returns nil when the extraction collaborator is disabled or
// cannot be built; pages then only yield table-derived records.
func (a *App) setupLLM(ctx context.Context, limiter *ratelimit.Limiter) *llm.Client {
	if !a.cfg.LLM.Enabled {
		a.logger.Warn("extraction collaborator disabled; only table-derived records will be produced",
			zap.Error(crawler.ErrConfiguration))
		return nil
	}
	client, err := llm.New(llm.Config{
		BaseURL:    a.cfg.LLM.BaseURL,
		Model:      a.cfg.LLM.Model,
		EmbedModel: a.cfg.LLM.EmbedModel,
		Timeout:    a.cfg.LLM.Timeout,
		MaxRetries: a.cfg.LLM.MaxRetries,
		ChunkSize:  a.cfg.Reducer.ChunkSize,
	}, limiter, a.logger)
	if err != nil {
		a.logger.Warn("extraction collaborator unavailable", zap.Error(fmt.Errorf("%w: %w", crawler.ErrConfiguration, err)))
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		a.logger.Warn("extraction collaborator did not answer ping; pages may fail extraction",
			zap.String("base_url", a.cfg.LLM.BaseURL), zap.Error(err))
	}
	return client
}

// setupEnrichment returns nil without profile credentials, which skips
// the enrichment stage entirely.
func (a *App) setupEnrichment(limiter *ratelimit.Limiter) *enrich.Stage {
	if !a.cfg.HasProfileCredentials() {
		a.logger.Warn("no profile credentials configured; skipping enrichment",
			zap.Error(fmt.Errorf("%w: %w", crawler.ErrConfiguration, crawler.ErrNoCredentials)))
		return nil
	}
	client, err := profile.New(profile.Config{
		BaseURL:     a.cfg.Enrich.BaseURL,
		BearerToken: a.cfg.Enrich.BearerToken,
		Timeout:     a.cfg.Enrich.Timeout,
		MaxRetries:  2,
	}, a.logger)
	if err != nil {
		a.logger.Warn("profile collaborator unavailable; skipping enrichment", zap.Error(err))
		return nil
	}
	return enrich.New(enrich.Config{
		PostWindow: a.cfg.Enrich.PostWindow,
		Platforms:  a.cfg.Enrich.Platforms,
	}, client, enrich.KeywordRelevance{Keywords: a.cfg.Enrich.Keywords}, limiter, a.logger)
}

func newReducer(cfg config.Config, semantic crawler.SemanticReducer, logger *zap.Logger) *reducer.Reducer {
	return reducer.New(reducer.Config{
		PruneThreshold:      cfg.Reducer.PruneThreshold,
		MinBlockChars:       cfg.Reducer.MinBlockChars,
		TableScoreThreshold: cfg.Reducer.TableScoreThreshold,
		MinTableRows:        cfg.Reducer.MinTableRows,
		Semantic:            cfg.Reducer.Semantic,
		ChunkSize:           cfg.Reducer.ChunkSize,
		Instruction:         cfg.Reducer.Instruction,
	}, semantic, logger)
}
