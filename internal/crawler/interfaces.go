package crawler

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Navigator loads a URL, runs hooks, and returns the resulting document.
// Failures are reported as *FetchError; a loaded page with no body is a
// successful result with empty Content.
type Navigator interface {
	Navigate(ctx context.Context, url string, hooks Hooks) (NavigateResult, error)
}

// RequestContext is what a BeforeNavigateHook sees.
type RequestContext struct {
	URL     string
	Headers http.Header
}

// BeforeNavigateHook returns the headers to send for a navigation.
type BeforeNavigateHook interface {
	BeforeNavigate(req RequestContext) http.Header
}

// Selector locates a clickable element either by CSS or by visible text.
type Selector struct {
	CSS  string
	Text string
}

func (s Selector) String() string {
	if s.CSS != "" {
		return s.CSS
	}
	return "text=" + s.Text
}

// PageHandle is the live page exposed to AfterLoadHooks.
type PageHandle interface {
	ScrollBy(ctx context.Context, pixels int) error
	Click(ctx context.Context, sel Selector) (bool, error)
}

// AfterLoadHook runs against the live page before its content is captured.
type AfterLoadHook interface {
	AfterLoad(ctx context.Context, page PageHandle) error
}

// Hooks bundles navigation hooks. Hooks run in slice order.
type Hooks struct {
	BeforeNavigate []BeforeNavigateHook
	AfterLoad      []AfterLoadHook
}

// Headers runs the BeforeNavigate hooks for url, each seeing the previous
// hook's headers.
func (h Hooks) Headers(url string) http.Header {
	headers := http.Header{}
	for _, hook := range h.BeforeNavigate {
		if hook == nil {
			continue
		}
		if out := hook.BeforeNavigate(RequestContext{URL: url, Headers: headers}); out != nil {
			headers = out
		}
	}
	return headers
}

// ExtractionClient performs schema-constrained extraction and returns the
// collaborator's raw text.
type ExtractionClient interface {
	Extract(ctx context.Context, content string, schema map[string]any, instruction string) (string, error)
}

// SemanticReducer condenses markdown against an instruction.
type SemanticReducer interface {
	Reduce(ctx context.Context, content, instruction string, maxChunkSize int) (string, error)
}

// LinkRelevance scores links against a query.
type LinkRelevance interface {
	Score(ctx context.Context, links []Link, query string) ([]ScoredLink, error)
}

// ProfileClient looks up public social profiles.
type ProfileClient interface {
	GetProfile(ctx context.Context, handle string) (ProfileStats, error)
	GetRecentPosts(ctx context.Context, handle string, count int) ([]Post, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher announces written artifacts.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs.
type IDGenerator interface {
	NewID() (string, error)
}
