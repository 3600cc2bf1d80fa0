package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/leaselens/internal/metrics"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

type operationKey struct{}

// WithOperation tags ctx with the prompt operation being invoked, for logs and metrics.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFrom returns the operation set by WithOperation, or "unknown".
func OperationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}

// Client wraps a provider with a per-call timeout, logging and metrics.
// It makes exactly one provider request per call and never retries.
type Client struct {
	provider models.Completer
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each call. Zero means no client-side bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient wraps provider.
func NewClient(provider models.Completer, opts ...ClientOption) *Client {
	c := &Client{provider: provider, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string  { return c.provider.Name() }
func (c *Client) Model() string { return c.provider.Model() }

// Complete forwards one prompt to the provider.
func (c *Client) Complete(ctx context.Context, prompt string, sampling models.SamplingConfig) (string, error) {
	op := OperationFrom(ctx)

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.provider.Complete(callCtx, prompt, sampling)
	elapsed := time.Since(start)
	c.metrics.ObserveModelCall(c.provider.Name(), op, elapsed, err)

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrInferenceTimeout) {
			err = fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
		}
		c.logger.Error("model call failed",
			"provider", c.provider.Name(),
			"operation", op,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return "", err
	}

	c.logger.Debug("model call completed",
		"provider", c.provider.Name(),
		"model", c.provider.Model(),
		"operation", op,
		"duration_ms", elapsed.Milliseconds(),
		"prompt_len", len(prompt),
		"response_len", len(out),
		"response_preview", truncateString(out, 200),
	)
	return out, nil
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

var _ models.Completer = (*Client)(nil)
