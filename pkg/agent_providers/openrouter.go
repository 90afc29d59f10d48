package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	api "github.com/alantheprice/housegen/pkg/agent_api"
)

const (
	DefaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	openRouterReferer         = "https://github.com/alantheprice/housegen"
	openRouterTitle           = "Housegen House Generator"
)

// OpenRouterProvider implements the OpenAI-compatible OpenRouter API
type OpenRouterProvider struct {
	httpClient *http.Client
	endpoint   string
	apiToken   string
	debug      bool
}

// NewOpenRouterProvider creates a new OpenRouter provider instance. An empty
// token falls back to OPENROUTER_API_KEY.
func NewOpenRouterProvider(endpoint, token string) (*OpenRouterProvider, error) {
	if token == "" {
		token = os.Getenv("OPENROUTER_API_KEY")
	}
	if token == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable not set")
	}
	if endpoint == "" {
		endpoint = DefaultOpenRouterEndpoint
	}

	return &OpenRouterProvider{
		// No client timeout: a hung collaborator blocks the run.
		httpClient: &http.Client{},
		endpoint:   endpoint,
		apiToken:   token,
	}, nil
}

// WithHTTPClient swaps the underlying http client.
func (p *OpenRouterProvider) WithHTTPClient(c *http.Client) *OpenRouterProvider {
	p.httpClient = c
	return p
}

// SetDebug enables request/response dumps on stderr
func (p *OpenRouterProvider) SetDebug(debug bool) {
	p.debug = debug
}

// GetEndpoint returns the chat completions URL
func (p *OpenRouterProvider) GetEndpoint() string {
	return p.endpoint
}

// SendChatRequest sends a single chat completion request to OpenRouter. A
// JSON body is decoded whatever the status code, so provider error payloads
// reach the caller as ChatResponse.Error rather than as a Go error.
func (p *OpenRouterProvider) SendChatRequest(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	requestBody := map[string]interface{}{
		"model":    req.Model,
		"messages": BuildOpenAIChatMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		requestBody["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		requestBody["temperature"] = *req.Temperature
	}
	if req.ResponseFormat != nil {
		requestBody["response_format"] = map[string]interface{}{"type": req.ResponseFormat.Type}
	}

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiToken)
	httpReq.Header.Set("HTTP-Referer", openRouterReferer)
	httpReq.Header.Set("X-Title", openRouterTitle)

	if p.debug {
		fmt.Fprintf(os.Stderr, "🔍 OpenRouter Request URL: %s\n", p.endpoint)
		fmt.Fprintf(os.Stderr, "🔍 OpenRouter Request Body: %s\n", string(reqBody))
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if p.debug {
		fmt.Fprintf(os.Stderr, "🔍 OpenRouter Response (status %d): %s\n", resp.StatusCode, truncate(string(body), 2000))
	}

	var chatResp api.ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("OpenRouter API error (status %d): %s", resp.StatusCode, truncate(string(body), 500))
	}

	return &chatResp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
