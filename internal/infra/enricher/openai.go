package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"newsintel/internal/domain/entity"
	"newsintel/internal/resilience/circuitbreaker"
	"newsintel/internal/resilience/retry"
)

// DefaultOpenAIModel is used when ENRICHER_MODEL is unset.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAI enriches articles with the Chat Completions API in JSON mode.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
	vocab          Vocabulary
	metrics        MetricsRecorder
}

// NewOpenAI creates an OpenAI enricher against the public API.
func NewOpenAI(apiKey string, cfg Config, vocab Vocabulary) *OpenAI {
	return NewOpenAIWithClientConfig(openai.DefaultConfig(apiKey), cfg, vocab)
}

// NewOpenAIWithClientConfig allows a custom base URL or HTTP client.
func NewOpenAIWithClientConfig(clientCfg openai.ClientConfig, cfg Config, vocab Vocabulary) *OpenAI {
	cfg = cfg.withDefaults(DefaultOpenAIModel)

	slog.Info("initialized openai enricher",
		slog.String("model", cfg.Model),
		slog.Int("topics", len(vocab.TopicLabels)),
		slog.Int("sectors", len(vocab.SectorGlossary)))

	return &OpenAI{
		client:         openai.NewClientWithConfig(clientCfg),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         cfg,
		vocab:          vocab,
		metrics:        NewPrometheusMetrics(),
	}
}

// WithRetryConfig overrides the retry policy.
func (o *OpenAI) WithRetryConfig(cfg retry.Config) *OpenAI {
	o.retryConfig = cfg
	return o
}

// Enrich classifies one article.
func (o *OpenAI) Enrich(ctx context.Context, a *entity.Article) (entity.Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var reply string
	err := retry.WithBackoff(ctx, o.retryConfig, func() error {
		out, err := circuitbreaker.Run(o.circuitBreaker, func() (string, error) {
			return o.doEnrich(ctx, a)
		})
		if circuitbreaker.IsRejection(err) {
			slog.Warn("openai api circuit breaker open, request rejected",
				slog.String("service", "openai-api"),
				slog.String("state", o.circuitBreaker.State().String()))
		}
		reply = out
		return err
	})
	if err != nil {
		return entity.Enrichment{}, fmt.Errorf("openai enrich failed: %w", err)
	}

	e, clamped, err := parseAnswer(reply, o.vocab)
	if err != nil {
		o.metrics.RecordInvalidResponse(providerOpenAI)
		return entity.Enrichment{}, fmt.Errorf("openai enrich: %w", err)
	}
	o.metrics.RecordClamped(providerOpenAI, clamped)
	return e, nil
}

func (o *OpenAI) doEnrich(ctx context.Context, a *entity.Article) (string, error) {
	requestID := uuid.New().String()
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(a, o.vocab, o.config.MaxInputChars)},
		},
	})
	duration := time.Since(start)
	o.metrics.RecordCall(providerOpenAI, duration, err)

	if err != nil {
		slog.ErrorContext(ctx, "enrichment request failed",
			slog.String("request_id", requestID),
			slog.String("provider", providerOpenAI),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("openai api error: %w", classifyOpenAIError(err))
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", retry.Permanent(ErrEmptyResponse)
	}
	slog.DebugContext(ctx, "enrichment request completed",
		slog.String("request_id", requestID),
		slog.Int64("article_id", a.ID),
		slog.Duration("duration", duration))
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError exposes the HTTP status so retry can decide.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &retry.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &retry.HTTPError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return err
}
