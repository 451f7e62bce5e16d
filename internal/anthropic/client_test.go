package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := &Client{
		httpClient: server.Client(),
		baseURL:    server.URL,
		apiKey:     "sk-ant-test",
	}
	return client, server.Close
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuth)

	client, err := NewClient("sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, client.baseURL)
}

func TestGeneratePlan(t *testing.T) {
	var gotRequest messageRequest
	var gotVersion, gotKey string
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "1. Reproduce.\n2. Fix."}]}`))
	})
	defer done()

	estimate := 2.0
	ticket := models.Ticket{
		ID:       "LIN-42",
		Title:    "Fix login bug",
		State:    "Open",
		Estimate: &estimate,
		Labels:   []string{"bug"},
		Comments: []models.Comment{
			{Author: "Alice", Body: "Reproduced", CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		},
	}

	plan, err := client.GeneratePlan(context.Background(), ticket, "claude-3-7-sonnet-20250219")
	require.NoError(t, err)

	assert.Equal(t, "LIN-42", plan.TicketID)
	assert.Equal(t, "1. Reproduce.\n2. Fix.", plan.Body)

	assert.Equal(t, "2023-06-01", gotVersion)
	assert.Equal(t, "sk-ant-test", gotKey)
	assert.Equal(t, "claude-3-7-sonnet-20250219", gotRequest.Model)
	assert.Equal(t, maxTokens, gotRequest.MaxTokens)
	require.Len(t, gotRequest.Messages, 1)
	assert.Equal(t, "user", gotRequest.Messages[0].Role)

	// The prompt carries the whole enriched ticket.
	prompt := gotRequest.Messages[0].Content
	assert.Contains(t, prompt, "Fix login bug")
	assert.Contains(t, prompt, "Labels: bug")
	assert.Contains(t, prompt, "Alice")
}

func TestGeneratePlanUnauthorized(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer done()

	_, err := client.GeneratePlan(context.Background(), models.Ticket{ID: "LIN-1"}, "claude-3-7-sonnet-20250219")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuth)
}

func TestGeneratePlanRateLimited(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer done()

	_, err := client.GeneratePlan(context.Background(), models.Ticket{ID: "LIN-1"}, "claude-3-7-sonnet-20250219")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRateLimit)
}

func TestGeneratePlanInvalidModel(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "model not found"}}`))
	})
	defer done()

	_, err := client.GeneratePlan(context.Background(), models.Ticket{ID: "LIN-1"}, "no-such-model")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrAuth)
	assert.Contains(t, err.Error(), "400")
}

func TestGeneratePlanEmptyContent(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": []}`))
	})
	defer done()

	_, err := client.GeneratePlan(context.Background(), models.Ticket{ID: "LIN-1"}, "claude-3-7-sonnet-20250219")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestGeneratePlanNetworkError(t *testing.T) {
	client := &Client{
		httpClient: &http.Client{Timeout: 50 * time.Millisecond},
		baseURL:    "http://127.0.0.1:1",
		apiKey:     "sk-ant-test",
	}

	_, err := client.GeneratePlan(context.Background(), models.Ticket{ID: "LIN-1"}, "claude-3-7-sonnet-20250219")
	require.Error(t, err)
	var netErr *apperrors.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestTestConnection(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "Hello"}]}`))
	})
	defer done()

	assert.NoError(t, client.TestConnection(context.Background(), "claude-3-7-sonnet-20250219"))
}
