package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/grykalski/keyword-clusterer/internal/retry"
)

const openaiBaseURL = "https://api.openai.com/v1"

// Client is a minimal client for the OpenAI Chat API
type Client struct {
	APIKey      string
	BaseURL     string
	HTTPClient  *http.Client
	RetryConfig retry.Config
}

// LanguageModelClient is the surface the adapters depend on, so tests can
// substitute a stub transport.
type LanguageModelClient interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// NewClient creates a new Client
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:      apiKey,
		BaseURL:     openaiBaseURL,
		HTTPClient:  http.DefaultClient,
		RetryConfig: retry.DefaultConfig(),
	}
}

var _ LanguageModelClient = (*Client)(nil)

// ChatCompletion sends a chat completion request to OpenAI with retry logic
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	url := c.BaseURL + "/chat/completions"

	var bodyBytes []byte
	err := retry.Do(ctx, retry.Options{
		Config:      c.RetryConfig,
		Name:        "OpenAI chat",
		IsRetryable: isRetryableError,
	}, func(attempt int) error {
		out, err := c.post(ctx, url, req)
		if err != nil {
			return err
		}
		bodyBytes = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return nil, &ChatCompletionError{
			Message: fmt.Sprintf("failed to parse chat completion response: %v", err),
			RawBody: json.RawMessage(bodyBytes),
		}
	}

	return &chatResp, nil
}

// post performs one HTTP exchange and returns the response body, wrapping
// non-200 statuses in a ChatCompletionError.
func (c *Client) post(ctx context.Context, url string, requestBody any) ([]byte, error) {
	body, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ChatCompletionError{
			Message:    fmt.Sprintf("openai chat API error %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			RawBody:    json.RawMessage(bodyBytes),
		}
	}

	return bodyBytes, nil
}

// isRetryableError determines if an error should trigger a retry: network
// failures, server errors, and rate limiting; 4xx rejections are final.
func isRetryableError(err error) bool {
	var apiErr *ChatCompletionError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429 || apiErr.StatusCode == 408
	}
	return true
}
