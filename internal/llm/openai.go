package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Message is one wire-format entry in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider request body.
type CompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// completionResponse mirrors the provider's success body. Only the
// first choice's message content is consumed.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ProviderError carries a non-2xx provider response. The raw body is
// preserved so callers can log the provider's error payload verbatim.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider returned status %d: %s", e.StatusCode, e.Body)
}

// ErrEmptyCompletion is returned when a 2xx response contains no choices.
var ErrEmptyCompletion = errors.New("completion response contained no choices")

// Provider is a stateless request/response completion API.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Compile-time check to ensure OpenAIClient implements Provider.
var _ Provider = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client for the given endpoint and model.
func NewOpenAIClient(apiURL, apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Complete sends the full message sequence and returns the assistant's
// reply text. The provider is not incremental: the whole reply is known
// at once on success. A non-2xx status is surfaced as *ProviderError
// with the response body attached; no retry is attempted.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(CompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("ERROR [OpenAIClient] Completion failed: status=%d body=%s", resp.StatusCode, string(respBody))
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return parsed.Choices[0].Message.Content, nil
}
