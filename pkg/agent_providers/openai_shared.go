package providers

import (
	api "github.com/alantheprice/housegen/pkg/agent_api"
)

// BuildOpenAIChatMessages converts messages into OpenAI/OpenRouter style chat
// message payloads. Empty roles default to "user".
func BuildOpenAIChatMessages(messages []api.Message) []map[string]interface{} {
	result := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		result = append(result, map[string]interface{}{
			"role":    role,
			"content": msg.Content,
		})
	}
	return result
}
