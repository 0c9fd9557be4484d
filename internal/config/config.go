// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob of a harvest session.
type Config struct {
	Session  SessionConfig  `mapstructure:"session"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Reducer  ReducerConfig  `mapstructure:"reducer"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Links    LinksConfig    `mapstructure:"links"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Report   ReportConfig   `mapstructure:"report"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// SessionConfig bounds the deep crawl.
type SessionConfig struct {
	Seeds           []string `mapstructure:"seeds"`
	MaxDepth        int      `mapstructure:"max_depth"`
	IncludeExternal bool     `mapstructure:"include_external"`
	ContentTypes    []string `mapstructure:"content_types"`
	URLPatterns     []string `mapstructure:"url_patterns"`
	AllowDomains    []string `mapstructure:"allow_domains"`
	DenyDomains     []string `mapstructure:"deny_domains"`
	Proxies         []string `mapstructure:"proxies"`
	MaxPagesPerSeed int      `mapstructure:"max_pages_per_seed"`
	Workers         int      `mapstructure:"workers"`
}

// FetchConfig configures the fetch/render adapter.
type FetchConfig struct {
	Mode               string        `mapstructure:"mode"`
	Headless           bool          `mapstructure:"headless"`
	UserAgent          string        `mapstructure:"user_agent"`
	AcceptLanguage     string        `mapstructure:"accept_language"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	ProfileDir         string        `mapstructure:"profile_dir"`
	ViewportWidth      int           `mapstructure:"viewport_width"`
	ViewportHeight     int           `mapstructure:"viewport_height"`
	ScrollCount        int           `mapstructure:"scroll_count"`
	ScrollPixels       int           `mapstructure:"scroll_pixels"`
	ScrollDelay        time.Duration `mapstructure:"scroll_delay"`
	LoadMoreAttempts   int           `mapstructure:"load_more_attempts"`
	LoadMoreWait       time.Duration `mapstructure:"load_more_wait"`
	LoadMoreSelectors  []string      `mapstructure:"load_more_selectors"`
	LoadMoreTexts      []string      `mapstructure:"load_more_texts"`
	RespectRobots      bool          `mapstructure:"respect_robots"`
	PromotionThreshold int           `mapstructure:"promotion_threshold"`
	HostRPS            float64       `mapstructure:"host_rps"`
}

// ReducerConfig configures content reduction.
type ReducerConfig struct {
	PruneThreshold      float64 `mapstructure:"prune_threshold"`
	MinBlockChars       int     `mapstructure:"min_block_chars"`
	TableScoreThreshold int     `mapstructure:"table_score_threshold"`
	MinTableRows        int     `mapstructure:"min_table_rows"`
	Semantic            bool    `mapstructure:"semantic"`
	ChunkSize           int     `mapstructure:"chunk_size"`
	Instruction         string  `mapstructure:"instruction"`
}

// LLMConfig configures the extraction collaborator.
type LLMConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	EmbedModel        string        `mapstructure:"embed_model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	// ExtractTimeout bounds the extraction of one page across all of its
	// chunk requests.
	ExtractTimeout    time.Duration `mapstructure:"extract_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Instruction       string        `mapstructure:"instruction"`
}

// LinksConfig configures link scoring.
type LinksConfig struct {
	MaxLinks int    `mapstructure:"max_links"`
	Query    string `mapstructure:"query"`
}

// EnrichConfig configures the profile collaborator and enrichment stage.
type EnrichConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	BearerToken string        `mapstructure:"bearer_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Delay       time.Duration `mapstructure:"delay"`
	PostWindow  int           `mapstructure:"post_window"`
	Keywords    []string      `mapstructure:"keywords"`
	Platforms   []string      `mapstructure:"platforms"`
}

// ReportConfig configures aggregation thresholds.
type ReportConfig struct {
	FollowerThreshold   int     `mapstructure:"follower_threshold"`
	EngagementThreshold int     `mapstructure:"engagement_threshold"`
	TopN                int     `mapstructure:"top_n"`
	DisparityRatio      float64 `mapstructure:"disparity_ratio"`
}

// StorageConfig selects the artifact backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for artifact notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the optional ops HTTP server.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ProgressConfig toggles the progress hub sinks.
type ProgressConfig struct {
	Log        bool `mapstructure:"log"`
	Prometheus bool `mapstructure:"prometheus"`
}

// Fetch modes.
const (
	ModeBrowser = "browser"
	ModeStatic  = "static"
	ModeHybrid  = "hybrid"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// DefaultLinkQuery is the relevance query used when scoring links.
const DefaultLinkQuery = "leaderboard profile user quest stats ranking score points"

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.seeds", []string{})
	v.SetDefault("session.max_depth", 2)
	v.SetDefault("session.include_external", false)
	v.SetDefault("session.content_types", []string{"text/html"})
	v.SetDefault("session.url_patterns", []string{
		"*quest*", "*user*", "*profile*", "*leaderboard*", "*stats*",
		"*score*", "*points*", "*campaign*", "*mission*", "*dashboard*",
	})
	v.SetDefault("session.max_pages_per_seed", 0)
	v.SetDefault("session.workers", 1)

	v.SetDefault("fetch.mode", ModeBrowser)
	v.SetDefault("fetch.headless", true)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.accept_language", "en-US,en;q=0.9")
	v.SetDefault("fetch.nav_timeout", 60*time.Second)
	v.SetDefault("fetch.viewport_width", 1280)
	v.SetDefault("fetch.viewport_height", 800)
	v.SetDefault("fetch.scroll_count", 20)
	v.SetDefault("fetch.scroll_pixels", 500)
	v.SetDefault("fetch.scroll_delay", 500*time.Millisecond)
	v.SetDefault("fetch.load_more_attempts", 5)
	v.SetDefault("fetch.load_more_wait", 2*time.Second)
	v.SetDefault("fetch.load_more_selectors", []string{".load-more", "[data-testid='load-more']"})
	v.SetDefault("fetch.load_more_texts", []string{"Load More", "Show More"})
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.promotion_threshold", 2048)
	v.SetDefault("fetch.host_rps", 0)

	v.SetDefault("reducer.prune_threshold", 0.3)
	v.SetDefault("reducer.min_block_chars", 80)
	v.SetDefault("reducer.table_score_threshold", 6)
	v.SetDefault("reducer.min_table_rows", 2)
	v.SetDefault("reducer.semantic", true)
	v.SetDefault("reducer.chunk_size", 4096)
	v.SetDefault("reducer.instruction",
		"Keep only content about users, leaderboards, quest participation, points, ranks and social handles.")

	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "deepseek-r1")
	v.SetDefault("llm.embed_model", "nomic-embed-text")
	v.SetDefault("llm.timeout", 180*time.Second)
	v.SetDefault("llm.extract_timeout", 15*time.Minute)
	v.SetDefault("llm.requests_per_second", 1.0)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.instruction", "")

	v.SetDefault("links.max_links", 15)
	v.SetDefault("links.query", DefaultLinkQuery)

	v.SetDefault("enrich.base_url", "https://api.twitter.com")
	v.SetDefault("enrich.bearer_token", "")
	v.SetDefault("enrich.timeout", 20*time.Second)
	v.SetDefault("enrich.delay", time.Second)
	v.SetDefault("enrich.post_window", 10)
	v.SetDefault("enrich.keywords", []string{"quest", "points", "rank", "leaderboard", "referral"})
	v.SetDefault("enrich.platforms", []string{"galxe", "layer3", "cookie", "kaito", "wallchain", "xeet"})

	v.SetDefault("report.follower_threshold", 10000)
	v.SetDefault("report.engagement_threshold", 100)
	v.SetDefault("report.top_n", 5)
	v.SetDefault("report.disparity_ratio", 1.5)

	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "harvest_data")
	v.SetDefault("storage.prefix", "")

	v.SetDefault("server.addr", "")
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("progress.log", false)
	v.SetDefault("progress.prometheus", true)
}

// Validate enforces required values and reasonable limits. An empty seed
// list is not an error here; sessions report it when they start.
func (c Config) Validate() error {
	if c.Session.MaxDepth < 0 {
		return fmt.Errorf("session.max_depth must be >= 0")
	}
	if c.Session.Workers <= 0 {
		return fmt.Errorf("session.workers must be > 0")
	}
	switch c.Fetch.Mode {
	case ModeBrowser, ModeStatic, ModeHybrid:
	default:
		return fmt.Errorf("fetch.mode must be one of browser, static, hybrid")
	}
	if c.Fetch.NavTimeout <= 0 {
		return fmt.Errorf("fetch.nav_timeout must be > 0")
	}
	if c.Reducer.ChunkSize <= 0 {
		return fmt.Errorf("reducer.chunk_size must be > 0")
	}
	if c.Links.MaxLinks < 0 {
		return fmt.Errorf("links.max_links must be >= 0")
	}
	if c.LLM.Enabled && strings.TrimSpace(c.LLM.BaseURL) == "" {
		return fmt.Errorf("llm.base_url must be set when llm is enabled")
	}
	if c.LLM.Enabled && c.LLM.ExtractTimeout < c.LLM.Timeout {
		return fmt.Errorf("llm.extract_timeout must be >= llm.timeout")
	}
	if c.Enrich.PostWindow <= 0 {
		return fmt.Errorf("enrich.post_window must be > 0")
	}
	if c.Report.FollowerThreshold < 0 || c.Report.EngagementThreshold < 0 {
		return fmt.Errorf("report thresholds must be >= 0")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// HasProfileCredentials reports whether enrichment can run.
func (c Config) HasProfileCredentials() bool {
	return strings.TrimSpace(c.Enrich.BearerToken) != ""
}
