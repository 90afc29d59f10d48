package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_SendChatRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req["model"])
		assert.Equal(t, "json", req["format"])
		assert.Equal(t, false, req["stream"])

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"{\"is_valid\":true}"},"done":true}` + "\n"))
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL)
	require.NoError(t, err)

	resp, err := p.SendChatRequest(context.Background(), &api.ChatRequest{
		Model:          "llama3",
		Messages:       []api.Message{{Role: "user", Content: "a house"}},
		ResponseFormat: api.JSONObjectFormat,
	})
	require.NoError(t, err)

	content, ok := resp.FirstContent()
	require.True(t, ok)
	assert.Equal(t, `{"is_valid":true}`, content)
}

func TestOllamaProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"nope\" not found"}`))
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL)
	require.NoError(t, err)

	_, err = p.SendChatRequest(context.Background(), &api.ChatRequest{Model: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNewTextProvider(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "k")

	c, err := NewTextProvider(ProviderConfig{Type: api.OpenRouterClientType})
	require.NoError(t, err)
	assert.IsType(t, &OpenRouterProvider{}, c)

	c, err = NewTextProvider(ProviderConfig{Type: api.OllamaClientType, OllamaHost: "http://127.0.0.1:11434"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, c)

	_, err = NewTextProvider(ProviderConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}
