package api

import "context"

// ChatClient is the single capability the pipeline needs from a collaborator:
// send one chat request, get one reply. Implementations make exactly one
// attempt per call.
type ChatClient interface {
	SendChatRequest(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ClientType names a collaborator backend.
type ClientType string

const (
	OpenRouterClientType ClientType = "openrouter"
	OllamaClientType     ClientType = "ollama"
)

// ChatClientFunc adapts a function to ChatClient.
type ChatClientFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

func (f ChatClientFunc) SendChatRequest(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}

// Float64Ptr is a small helper for optional sampling parameters.
func Float64Ptr(v float64) *float64 {
	return &v
}
