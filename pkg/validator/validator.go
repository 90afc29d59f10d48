// Package validator classifies whether user text describes a house design and
// extracts a refined prompt plus structured metadata. It never fails: every
// problem collapses to an invalid result.
package validator

import (
	"context"
	"encoding/json"
	"strings"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	"github.com/alantheprice/housegen/pkg/house"
	"github.com/alantheprice/housegen/pkg/utils"
)

const SystemPrompt = `You are an interior architecture assistant. Your job is to determine whether the user's request is related to house architecture, exterior design, interior design, or floor plans.
If it is related, respond with a JSON object:
{"is_valid": true, "refined_prompt": "<detailed description suitable for image generation>", "total_rooms": <int or null>, "house_dimensions": "<string or null>", "interior_furniture": ["item1", "item2", ...]}
Include any extracted details such as style, rooms, dimensions, furniture.
If it is NOT related to house architecture/design, respond with:
{"is_valid": false, "refined_prompt": ""}
Do not include any other text.`

const temperature = 0.1

type Validator struct {
	client api.ChatClient
	model  string
	logger *utils.Logger
}

func New(client api.ChatClient, model string, logger *utils.Logger) *Validator {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Validator{client: client, model: model, logger: logger}
}

// Validate asks the collaborator to classify userText.
func (v *Validator) Validate(ctx context.Context, userText string) house.ValidationResult {
	resp, err := v.client.SendChatRequest(ctx, &api.ChatRequest{
		Model: v.model,
		Messages: []api.Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: userText},
		},
		Temperature:    api.Float64Ptr(temperature),
		ResponseFormat: api.JSONObjectFormat,
	})
	if err != nil {
		v.logger.Warnf("validator error: %v", err)
		return house.Invalid()
	}
	if resp.HasError() {
		v.logger.Warnf("validator error: %s", resp.Error.Message)
		return house.Invalid()
	}
	content, ok := resp.FirstContent()
	if !ok {
		v.logger.Warnf("validator error: reply has no choices")
		return house.Invalid()
	}
	return ParseResult(content)
}

// ParseResult turns a validator reply into a ValidationResult. A reply that
// is not a JSON object, or whose is_valid is missing or not a bool, is
// invalid. Other fields are decoded one by one; malformed ones fall back to
// nil or an empty list.
func ParseResult(content string) house.ValidationResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &fields); err != nil {
		return house.Invalid()
	}

	var isValid bool
	raw, ok := fields["is_valid"]
	if !ok || json.Unmarshal(raw, &isValid) != nil || !isValid {
		return house.Invalid()
	}

	result := house.ValidationResult{IsValid: true, InteriorFurniture: []string{}}
	decodeInto(fields["refined_prompt"], &result.RefinedPrompt)

	var rooms int
	if decodeInto(fields["total_rooms"], &rooms) {
		result.TotalRooms = &rooms
	}
	var dims string
	if decodeInto(fields["house_dimensions"], &dims) {
		result.HouseDimensions = &dims
	}
	var furniture []string
	if decodeInto(fields["interior_furniture"], &furniture) && furniture != nil {
		result.InteriorFurniture = furniture
	}
	return result
}

// decodeInto reports whether raw held a non-null value of dst's type.
func decodeInto(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
