package providers

import (
	"fmt"

	api "github.com/alantheprice/housegen/pkg/agent_api"
)

// ProviderConfig carries what the factory needs to build a collaborator.
type ProviderConfig struct {
	Type       api.ClientType
	Endpoint   string
	APIKey     string
	OllamaHost string
	Debug      bool
}

// NewTextProvider builds the text-completion collaborator used by the
// validator and the planner.
func NewTextProvider(cfg ProviderConfig) (api.ChatClient, error) {
	switch cfg.Type {
	case api.OpenRouterClientType, "":
		p, err := NewOpenRouterProvider(cfg.Endpoint, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		p.SetDebug(cfg.Debug)
		return p, nil
	case api.OllamaClientType:
		return NewOllamaProvider(cfg.OllamaHost)
	default:
		return nil, fmt.Errorf("unknown text provider: %s", cfg.Type)
	}
}

// NewImageProvider builds the image-generation collaborator. Images always
// come from the OpenRouter-compatible endpoint whatever cfg.Type says.
func NewImageProvider(cfg ProviderConfig) (api.ChatClient, error) {
	p, err := NewOpenRouterProvider(cfg.Endpoint, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	p.SetDebug(cfg.Debug)
	return p, nil
}
