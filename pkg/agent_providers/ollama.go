package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	ollama "github.com/ollama/ollama/api"
)

// OllamaProvider serves text completions from an Ollama server. It has no
// image output, so it is only offered for the validator and planner roles.
type OllamaProvider struct {
	client *ollama.Client
	host   string
}

// NewOllamaProvider creates a provider for the given host. An empty host
// uses OLLAMA_HOST / the ollama default.
func NewOllamaProvider(host string) (*OllamaProvider, error) {
	if host == "" {
		client, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return &OllamaProvider{client: client}, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaProvider{
		client: ollama.NewClient(base, &http.Client{}),
		host:   host,
	}, nil
}

// SendChatRequest issues one non-streaming chat call.
func (p *OllamaProvider) SendChatRequest(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	messages := make([]ollama.Message, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = ollama.Message{Role: msg.Role, Content: msg.Content}
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  map[string]interface{}{},
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == api.JSONObjectFormat.Type {
		chatReq.Format = json.RawMessage(`"json"`)
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}

	var content strings.Builder
	var model string
	err := p.client.Chat(ctx, chatReq, func(res ollama.ChatResponse) error {
		content.WriteString(res.Message.Content)
		model = res.Model
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	resp := &api.ChatResponse{Model: model, Choices: make([]api.Choice, 1)}
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = content.String()
	resp.Choices[0].FinishReason = "stop"
	return resp, nil
}
