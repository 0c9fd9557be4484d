package crawler

import (
	"net/http"
	"time"
)

// NodeState tracks where a frontier node sits in its lifecycle.
type NodeState string

// Node lifecycle states. Rejected, FetchFailed, ExtractionFailed and
// ChildrenEnqueued are terminal.
const (
	NodeDiscovered       NodeState = "discovered"
	NodeAdmitted         NodeState = "admitted"
	NodeRejected         NodeState = "rejected"
	NodeFetched          NodeState = "fetched"
	NodeFetchFailed      NodeState = "fetch_failed"
	NodeExtracted        NodeState = "extracted"
	NodeExtractionFailed NodeState = "extraction_failed"
	NodeChildrenEnqueued NodeState = "children_enqueued"
)

// Terminal reports whether no further transition is possible from s.
func (s NodeState) Terminal() bool {
	switch s {
	case NodeRejected, NodeFetchFailed, NodeExtractionFailed, NodeChildrenEnqueued:
		return true
	default:
		return false
	}
}

// FrontierNode is one URL scheduled (or considered) for fetching.
type FrontierNode struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Depth     int       `json:"depth"`
	ParentURL string    `json:"parent_url,omitempty"`
	SeedURL   string    `json:"seed_url"`
	LinkScore float64   `json:"link_score"`
	State     NodeState `json:"state"`
}

// Scope bounds a deep crawl.
type Scope struct {
	MaxDepth            int
	IncludeExternal     bool
	AllowedContentTypes []string
	URLPatterns         []string
	AllowDomains        []string
	DenyDomains         []string
	Proxies             []string
	MaxPagesPerSeed     int
}

// Link is an outbound anchor discovered on a fetched page.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// ScoredLink pairs a link with its relevance score.
type ScoredLink struct {
	Link
	Score float64 `json:"score"`
}

// NavigateResult is what the fetch/render adapter reports for one URL.
// Success=true with empty Content means the page loaded but had no body.
type NavigateResult struct {
	Content      string        `json:"-"`
	FinalURL     string        `json:"final_url"`
	StatusCode   int           `json:"status_code"`
	ContentType  string        `json:"content_type,omitempty"`
	Headers      http.Header   `json:"-"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Rendered     bool          `json:"rendered"`
	Duration     time.Duration `json:"-"`
}

// Table is a tabular block retained verbatim by the reducer.
type Table struct {
	Caption string     `json:"caption,omitempty"`
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows"`
	Score   int        `json:"score"`
}

// ReducedContent is the pruned page handed to extraction.
type ReducedContent struct {
	URL      string  `json:"url"`
	Title    string  `json:"title,omitempty"`
	Markdown string  `json:"markdown"`
	Tables   []Table `json:"tables,omitempty"`
	Links    []Link  `json:"-"`
}

// UserRecord is one extracted participant row.
type UserRecord struct {
	HandleOrID    string            `json:"username,omitempty"`
	WalletAddress string            `json:"wallet_address,omitempty"`
	ScoreRaw      string            `json:"points_or_score,omitempty"`
	RankRaw       string            `json:"leaderboard_rank,omitempty"`
	SocialHandle  string            `json:"twitter_handle,omitempty"`
	Extra         map[string]any    `json:"additional_info,omitempty"`
	SourceURL     string            `json:"source_url,omitempty"`
	Engagement    *EngagementRecord `json:"twitter_data,omitempty"`
}

// SocialHandleCandidate returns the handle enrichment should look up,
// falling back to the "twitter" entry of Extra.
func (r UserRecord) SocialHandleCandidate() string {
	if r.SocialHandle != "" {
		return r.SocialHandle
	}
	if r.Extra == nil {
		return ""
	}
	if v, ok := r.Extra["twitter"].(string); ok {
		return v
	}
	return ""
}

// Post is one recent social post.
type Post struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"created_at"`
	Likes     int       `json:"likes"`
	Reposts   int       `json:"retweets"`
	Quotes    int       `json:"quotes"`
}

// Engagement returns the post's likes + reposts + quotes.
func (p Post) Engagement() int {
	return p.Likes + p.Reposts + p.Quotes
}

// ProfileStats is the public profile returned by a profile collaborator.
type ProfileStats struct {
	ID          string `json:"id,omitempty"`
	Handle      string `json:"handle"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	PostCount   int    `json:"tweet_count"`
	Verified    bool   `json:"verified"`
	Description string `json:"description,omitempty"`
}

// EngagementRecord is the social data attached to an enriched UserRecord.
type EngagementRecord struct {
	SocialHandle    string `json:"handle"`
	Followers       int    `json:"followers"`
	Following       int    `json:"following"`
	PostCount       int    `json:"tweet_count"`
	Verified        bool   `json:"verified"`
	Description     string `json:"description,omitempty"`
	Platform        string `json:"platform,omitempty"`
	RelevantPosts   []Post `json:"relevant_tweets"`
	EngagementScore int    `json:"engagement_score"`
}

// PageArtifact is the persisted outcome of one frontier node.
type PageArtifact struct {
	URL          string       `json:"url"`
	FinalURL     string       `json:"final_url,omitempty"`
	ParentURL    string       `json:"parent_url,omitempty"`
	Depth        int          `json:"depth"`
	LinkScore    float64      `json:"link_score"`
	State        NodeState    `json:"state"`
	StatusCode   int          `json:"status_code,omitempty"`
	ContentType  string       `json:"content_type,omitempty"`
	ContentHash  string       `json:"content_hash,omitempty"`
	FetchedAt    time.Time    `json:"fetched_at"`
	Summary      string       `json:"page_summary,omitempty"`
	Records      []UserRecord `json:"users,omitempty"`
	Tables       []Table      `json:"tables,omitempty"`
	Error        string       `json:"error,omitempty"`
	RawExtracted string       `json:"-"`

	// ChildrenRejected names the response filter that kept this page's
	// links out of the frontier.
	ChildrenRejected string `json:"children_rejected,omitempty"`
}

// SeedArtifact is the document written per processed seed.
type SeedArtifact struct {
	SessionID   string         `json:"session_id"`
	SeedURL     string         `json:"seed_url"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Pages       []PageArtifact `json:"pages"`
}

// Records flattens every page's records in page order.
func (a SeedArtifact) Records() []UserRecord {
	var out []UserRecord
	for _, page := range a.Pages {
		out = append(out, page.Records...)
	}
	return out
}
