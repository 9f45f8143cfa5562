// Package llm wraps Genkit model calls with rate limiting and retry.
//
// All three model-backed stages (classification, SQL generation, answer
// synthesis) go through one Client so provider throttling and transient
// failures are handled in a single place.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/finsight/finsight/internal/log"
)

// ErrUnavailable indicates the model provider kept failing after retries.
var ErrUnavailable = errors.New("model provider unavailable")

// GenerateOpts parameterizes one model call.
type GenerateOpts struct {
	System          string
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
}

// Client executes model calls against a fixed provider-qualified model.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	g         *genkit.Genkit
	modelName string
	limiter   *rate.Limiter
	retry     RetryConfig
	logger    log.Logger
}

// NewClient creates a Client for the given provider-qualified model name
// (e.g. "openai/gpt-4o-mini").
func NewClient(g *genkit.Genkit, modelName string, logger log.Logger) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		g:         g,
		modelName: modelName,
		// 5 req/s with small burst keeps a single instance inside typical
		// provider limits without queueing interactive requests for long.
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		retry:   DefaultRetryConfig(),
		logger:  logger.With("component", "llm"),
	}, nil
}

// ModelName returns the provider-qualified model identifier.
func (c *Client) ModelName() string {
	return c.modelName
}

// GenerateText runs one model call and returns the trimmed response text.
// Transient provider errors are retried with exponential backoff; exhausted
// retries surface as ErrUnavailable.
func (c *Client) GenerateText(ctx context.Context, opts GenerateOpts) (string, error) {
	genOpts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithPrompt(opts.Prompt),
	}
	if opts.System != "" {
		genOpts = append(genOpts, ai.WithSystem(opts.System))
	}
	if opts.Temperature > 0 || opts.MaxOutputTokens > 0 {
		genOpts = append(genOpts, ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxOutputTokens,
		}))
	}

	resp, err := c.generateWithRetry(ctx, genOpts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// generateWithRetry executes the call with exponential backoff.
// Each attempt (not just the first) waits on the rate limiter.
func (c *Client) generateWithRetry(ctx context.Context, genOpts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, c.g, genOpts...)
		if err == nil {
			c.logger.Debug("model call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("%w: after %d retries (elapsed: %v): %w",
		ErrUnavailable, c.retry.MaxRetries, time.Since(start), lastErr)
}

// StripCodeFences removes ```json ... ``` wrapping from model output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (with optional language tag).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		// Remove closing fence.
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
