// Package llm is the client for the language-model collaborator, spoken
// over the Ollama HTTP API. It serves three roles in the pipeline:
// schema-constrained extraction, semantic content reduction and link
// relevance scoring through embeddings.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/metrics"
	"github.com/JakeFAU/infofi-harvester/internal/policy/ratelimit"
)

// Config configures the client.
type Config struct {
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration
	MaxRetries int
	// RetryWait is the minimum backoff between attempts.
	RetryWait time.Duration
	// ChunkSize bounds extraction input, in words.
	ChunkSize int
}

// Client talks to an Ollama-compatible server.
type Client struct {
	cfg     Config
	resty   *resty.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// New builds a Client. limiter may be nil.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("llm base url is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4096
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Retries happen in the transport: 429, 5xx and connection errors are
	// retried with backoff, and the last response is passed through so
	// status handling stays in the caller.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 10 * cfg.RetryWait
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	return &Client{
		cfg:     cfg,
		resty:   client,
		limiter: limiter,
		logger:  logger.Named("llm"),
	}, nil
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  any            `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type apiError struct {
	Error string `json:"error"`
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.resty.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return fmt.Errorf("ping llm: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ping llm: status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) generate(ctx context.Context, op string, req generateRequest) (string, error) {
	release, err := c.limiter.Acquire(ctx, ratelimit.KeyExtraction)
	if err != nil {
		return "", err
	}
	defer release()

	req.Model = c.cfg.Model
	req.Stream = false
	if req.Options == nil {
		req.Options = map[string]any{"temperature": 0}
	}

	start := time.Now()
	var (
		out    generateResponse
		apiErr apiError
	)
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/generate")
	err = responseError(resp, err, apiErr.Error)
	metrics.ObserveCollaboratorCall("llm", op, err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("llm %s: %w", op, err)
	}
	return out.Response, nil
}

func (c *Client) embed(ctx context.Context, inputs []string) ([][]float64, error) {
	release, err := c.limiter.Acquire(ctx, ratelimit.KeyExtraction)
	if err != nil {
		return nil, err
	}
	defer release()

	model := c.cfg.EmbedModel
	if model == "" {
		model = c.cfg.Model
	}
	start := time.Now()
	var (
		out    embedResponse
		apiErr apiError
	)
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(embedRequest{Model: model, Input: inputs}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/embed")
	err = responseError(resp, err, apiErr.Error)
	metrics.ObserveCollaboratorCall("llm", "embed", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("llm embed: %w", err)
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("llm embed: got %d embeddings for %d inputs", len(out.Embeddings), len(inputs))
	}
	return out.Embeddings, nil
}

func responseError(resp *resty.Response, err error, message string) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		if message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode(), message)
		}
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}
