// Package anthropic provides a minimal client for the Anthropic messages
// API, used to generate implementation plans for tickets.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danielolaszy/linear-agent/internal/apperrors"
	"github.com/danielolaszy/linear-agent/internal/logging"
	"github.com/danielolaszy/linear-agent/pkg/models"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1/messages"
	apiVersion     = "2023-06-01"
	maxTokens      = 4000
)

// Client handles interactions with the Anthropic messages API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a new Anthropic API client.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is not configured: %w", apperrors.ErrAuth)
	}

	return &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}, nil
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// TestConnection sends a trivial completion request to verify the API key.
func (c *Client) TestConnection(ctx context.Context, model string) error {
	_, err := c.complete(ctx, model, "Hello, this is a test message. Please respond with a short greeting.")
	return err
}

// GeneratePlan asks the model for an implementation plan for the ticket.
// The call is atomic: it either returns a complete plan or fails. Rate
// limiting is surfaced as ErrRateLimit, never silently retried.
func (c *Client) GeneratePlan(ctx context.Context, ticket models.Ticket, model string) (*models.Plan, error) {
	text, err := c.complete(ctx, model, buildPlanPrompt(ticket))
	if err != nil {
		return nil, err
	}

	return &models.Plan{
		TicketID: ticket.ID,
		Body:     text,
	}, nil
}

// complete sends a single completion request and returns the response text.
func (c *Client) complete(ctx context.Context, model, prompt string) (string, error) {
	payload, err := json.Marshal(messageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create anthropic request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &apperrors.NetworkError{Op: "anthropic completion", Err: err}
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return "", &apperrors.NetworkError{Op: "anthropic response read", Err: err}
	}

	logging.Debug("anthropic api response",
		"status", resp.StatusCode,
		"body", logging.Truncate(string(body), 1000))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("anthropic API rejected the request (status %d): %w", resp.StatusCode, apperrors.ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("anthropic API throttled the request: %w", apperrors.ErrRateLimit)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, logging.Truncate(string(body), 200))
	}

	var response messageResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("anthropic API returned an empty response")
	}

	return response.Content[0].Text, nil
}
