package enricher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsintel/internal/domain/entity"
)

func chatCompletion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1736500000,
		"model":   "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cc := openai.DefaultConfig("test-key")
	cc.BaseURL = server.URL + "/v1"
	o := NewOpenAIWithClientConfig(cc, Config{Model: "gpt-test", Timeout: 5 * time.Second}, testVocabulary())
	return o.WithRetryConfig(fastRetry())
}

func TestOpenAI_Enrich(t *testing.T) {
	var req openai.ChatCompletionRequest
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletion(
			`{"relevance":0.6,"importance":0.9,"actionable":0.2,"urgency":0.3,"topic":"Cryptocurrency","sectors":["crypto"],"sentiment":"negative"}`))
	})

	e, err := o.Enrich(context.Background(), &entity.Article{ID: 3, Title: "Bitcoin slides"})
	require.NoError(t, err)
	assert.Equal(t, "Cryptocurrency", e.Topic)
	assert.Equal(t, []string{"crypto"}, e.Sectors)
	assert.Equal(t, entity.SentimentNegative, e.Sentiment)
	assert.Equal(t, 0.9, e.Scores.Get(entity.SignalImportance))

	assert.Equal(t, "gpt-test", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Title: Bitcoin slides")
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
}

func TestOpenAI_ErrorHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"401 not retried", http.StatusUnauthorized, 1},
		{"400 not retried", http.StatusBadRequest, 1},
		{"429 retried", http.StatusTooManyRequests, 2},
		{"503 retried", http.StatusServiceUnavailable, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"failure","type":"server_error"}}`)
			})

			_, err := o.Enrich(context.Background(), &entity.Article{Title: "t"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "openai api error")
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
	})

	_, err := o.Enrich(context.Background(), &entity.Article{Title: "t"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
