// Package profile is the client for the social-profile collaborator. It
// speaks the X API v2 shape: user lookup by username and a user's recent
// posts with public metrics.
package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/metrics"
)

// Page-size bounds of the timeline endpoint.
const (
	minPosts = 5
	maxPosts = 100
)

// Config configures the client.
type Config struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
	MaxRetries  int
	// RetryWait is the minimum backoff between attempts.
	RetryWait time.Duration
}

// Client implements crawler.ProfileClient.
type Client struct {
	cfg    Config
	resty  *resty.Client
	logger *zap.Logger

	mu  sync.Mutex
	ids map[string]string
}

// New builds a Client. A missing bearer token is not an error here; every
// call then fails with crawler.ErrNoCredentials.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("profile base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 5 * cfg.RetryWait
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.CheckRetry = retryServerErrors

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.BearerToken).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	return &Client{
		cfg:    cfg,
		resty:  client,
		logger: logger.Named("profile"),
		ids:    map[string]string{},
	}, nil
}

// retryServerErrors retries connection failures and 5xx responses. 429 is
// returned at once so the caller can report ErrRateLimited.
func retryServerErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type publicMetrics struct {
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	TweetCount     int `json:"tweet_count"`
	LikeCount      int `json:"like_count"`
	RetweetCount   int `json:"retweet_count"`
	QuoteCount     int `json:"quote_count"`
}

type apiUser struct {
	ID            string        `json:"id"`
	Username      string        `json:"username"`
	Description   string        `json:"description"`
	Verified      bool          `json:"verified"`
	PublicMetrics publicMetrics `json:"public_metrics"`
}

type userResponse struct {
	Data   *apiUser   `json:"data"`
	Errors []apiError `json:"errors"`
}

type apiTweet struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	CreatedAt     time.Time     `json:"created_at"`
	PublicMetrics publicMetrics `json:"public_metrics"`
}

type tweetsResponse struct {
	Data   []apiTweet `json:"data"`
	Errors []apiError `json:"errors"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// GetProfile looks up handle's public profile.
func (c *Client) GetProfile(ctx context.Context, handle string) (crawler.ProfileStats, error) {
	user, err := c.lookup(ctx, handle)
	if err != nil {
		return crawler.ProfileStats{}, err
	}
	return crawler.ProfileStats{
		ID:          user.ID,
		Handle:      user.Username,
		Followers:   user.PublicMetrics.FollowersCount,
		Following:   user.PublicMetrics.FollowingCount,
		PostCount:   user.PublicMetrics.TweetCount,
		Verified:    user.Verified,
		Description: user.Description,
	}, nil
}

// GetRecentPosts returns up to count of handle's most recent posts, newest
// first.
func (c *Client) GetRecentPosts(ctx context.Context, handle string, count int) ([]crawler.Post, error) {
	if count <= 0 {
		return nil, nil
	}
	id, err := c.userID(ctx, handle)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var out tweetsResponse
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParams(map[string]string{
			"max_results":  strconv.Itoa(min(max(count, minPosts), maxPosts)),
			"tweet.fields": "created_at,public_metrics",
		}).
		SetResult(&out).
		Get("/2/users/{id}/tweets")
	err = statusError(resp, err)
	metrics.ObserveCollaboratorCall("profile", "recent_posts", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("recent posts @%s: %w", handle, err)
	}

	posts := make([]crawler.Post, 0, min(len(out.Data), count))
	for _, t := range out.Data {
		if len(posts) == count {
			break
		}
		posts = append(posts, crawler.Post{
			ID:        t.ID,
			Text:      t.Text,
			Timestamp: t.CreatedAt,
			Likes:     t.PublicMetrics.LikeCount,
			Reposts:   t.PublicMetrics.RetweetCount,
			Quotes:    t.PublicMetrics.QuoteCount,
		})
	}
	return posts, nil
}

func (c *Client) userID(ctx context.Context, handle string) (string, error) {
	key := strings.ToLower(handle)
	c.mu.Lock()
	id, ok := c.ids[key]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	user, err := c.lookup(ctx, handle)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (c *Client) lookup(ctx context.Context, handle string) (*apiUser, error) {
	if strings.TrimSpace(c.cfg.BearerToken) == "" {
		return nil, crawler.ErrNoCredentials
	}

	start := time.Now()
	var out userResponse
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParam("handle", handle).
		SetQueryParam("user.fields", "public_metrics,verified,description").
		SetResult(&out).
		Get("/2/users/by/username/{handle}")
	err = statusError(resp, err)
	if err == nil && out.Data == nil {
		// Unknown users come back as 200 with an errors array.
		err = crawler.ErrProfileNotFound
		if len(out.Errors) > 0 {
			err = fmt.Errorf("%w: %s", crawler.ErrProfileNotFound, out.Errors[0].Detail)
		}
	}
	metrics.ObserveCollaboratorCall("profile", "get_profile", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("lookup @%s: %w", handle, err)
	}

	c.mu.Lock()
	c.ids[strings.ToLower(handle)] = out.Data.ID
	c.mu.Unlock()
	return out.Data, nil
}

func statusError(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return crawler.ErrProfileNotFound
	case code == http.StatusTooManyRequests:
		return crawler.ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", crawler.ErrNoCredentials, code)
	case resp.IsError():
		return fmt.Errorf("status %d", code)
	}
	return nil
}
