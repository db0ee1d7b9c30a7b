package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"newsintel/internal/domain/entity"
	"newsintel/internal/resilience/circuitbreaker"
	"newsintel/internal/resilience/retry"
)

// DefaultClaudeModel is used when ENRICHER_MODEL is unset.
const DefaultClaudeModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Claude enriches articles with Anthropic's Messages API.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
	vocab          Vocabulary
	metrics        MetricsRecorder
}

// NewClaude creates a Claude enricher. opts are passed to the SDK client,
// e.g. option.WithBaseURL in tests. SDK-level retries are disabled because
// retries are handled by the resilience wrappers.
func NewClaude(apiKey string, cfg Config, vocab Vocabulary, opts ...option.RequestOption) *Claude {
	cfg = cfg.withDefaults(DefaultClaudeModel)
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)

	slog.Info("initialized claude enricher",
		slog.String("model", cfg.Model),
		slog.Int("topics", len(vocab.TopicLabels)),
		slog.Int("sectors", len(vocab.SectorGlossary)))

	return &Claude{
		client:         anthropic.NewClient(opts...),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         cfg,
		vocab:          vocab,
		metrics:        NewPrometheusMetrics(),
	}
}

// WithRetryConfig overrides the retry policy.
func (c *Claude) WithRetryConfig(cfg retry.Config) *Claude {
	c.retryConfig = cfg
	return c
}

// Enrich classifies one article.
func (c *Claude) Enrich(ctx context.Context, a *entity.Article) (entity.Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var reply string
	err := retry.WithBackoff(ctx, c.retryConfig, func() error {
		out, err := circuitbreaker.Run(c.circuitBreaker, func() (string, error) {
			return c.doEnrich(ctx, a)
		})
		if circuitbreaker.IsRejection(err) {
			slog.Warn("claude api circuit breaker open, request rejected",
				slog.String("service", "claude-api"),
				slog.String("state", c.circuitBreaker.State().String()))
		}
		reply = out
		return err
	})
	if err != nil {
		return entity.Enrichment{}, fmt.Errorf("claude enrich failed: %w", err)
	}

	e, clamped, err := parseAnswer(reply, c.vocab)
	if err != nil {
		c.metrics.RecordInvalidResponse(providerClaude)
		return entity.Enrichment{}, fmt.Errorf("claude enrich: %w", err)
	}
	c.metrics.RecordClamped(providerClaude, clamped)
	return e, nil
}

// doEnrich performs one API call without retry or circuit breaker.
func (c *Claude) doEnrich(ctx context.Context, a *entity.Article) (string, error) {
	requestID := uuid.New().String()
	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(buildPrompt(a, c.vocab, c.config.MaxInputChars)),
			),
		},
	})
	duration := time.Since(start)
	c.metrics.RecordCall(providerClaude, duration, err)

	if err != nil {
		slog.ErrorContext(ctx, "enrichment request failed",
			slog.String("request_id", requestID),
			slog.String("provider", providerClaude),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("claude api error: %w", &retry.HTTPError{
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Error(),
			})
		}
		return "", fmt.Errorf("claude api error: %w", err)
	}

	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok && tb.Text != "" {
			slog.DebugContext(ctx, "enrichment request completed",
				slog.String("request_id", requestID),
				slog.Int64("article_id", a.ID),
				slog.Duration("duration", duration))
			return tb.Text, nil
		}
	}
	return "", retry.Permanent(ErrEmptyResponse)
}
