// Package planner asks the text-completion collaborator for a structured
// floor plan and returns it verbatim as a HousePlan or PlanError.
package planner

import (
	"context"
	"errors"
	"fmt"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	"github.com/alantheprice/housegen/pkg/house"
	"github.com/alantheprice/housegen/pkg/utils"
)

// ErrPlanningFailed means the collaborator produced no usable completion.
var ErrPlanningFailed = errors.New("planning failed")

const systemPromptTemplate = `
You are an architectural planner AI.

Return STRICT JSON ONLY.

Schema:
{
  "floors": [
    {
      "floor_number": 1,
      "rooms": [
        {
          "name": "Living Room",
          "width_ft": 12,
          "length_ft": 14,
          "style": "modern minimalist"
        }
      ]
    }
  ],
  "exterior_style": "modern minimalist house"
}

Rules:
- Maximum %d rooms per floor
- If exceeded, return exactly:
  { "error": "rooms out of bound" }
- No explanations
- No markdown
`

// SystemPrompt returns the planner instruction for the given room limit.
func SystemPrompt(maxRoomsPerFloor int) string {
	return fmt.Sprintf(systemPromptTemplate, maxRoomsPerFloor)
}

type Planner struct {
	client       api.ChatClient
	model        string
	systemPrompt string
	logger       *utils.Logger
}

func New(client api.ChatClient, model string, maxRoomsPerFloor int, logger *utils.Logger) *Planner {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Planner{
		client:       client,
		model:        model,
		systemPrompt: SystemPrompt(maxRoomsPerFloor),
		logger:       logger,
	}
}

// GeneratePlan requests a plan for userText. The returned error wraps
// ErrPlanningFailed or house.ErrPlanMalformed; both are fatal for a run.
// Room counts are not checked here.
func (p *Planner) GeneratePlan(ctx context.Context, userText string) (house.PlanResponse, error) {
	resp, err := p.client.SendChatRequest(ctx, &api.ChatRequest{
		Model: p.model,
		Messages: []api.Message{
			{Role: "system", Content: p.systemPrompt},
			{Role: "user", Content: userText},
		},
	})
	if err != nil {
		return nil, planningFailed(err)
	}

	content, ok := resp.FirstContent()
	if !ok {
		if resp.HasError() {
			return nil, planningFailed(errors.New(resp.Error.Message))
		}
		return nil, planningFailed(errors.New("reply has no choices"))
	}

	plan, err := house.DecodePlanResponse([]byte(content))
	if err != nil {
		p.logger.Warnf("plan reply not usable: %v", err)
		return nil, utils.NewStructuredError("PLAN_MALFORMED", "Planner reply is not a plan", utils.CategoryValidation, err).
			WithOperation("generate_plan")
	}
	return plan, nil
}

func planningFailed(cause error) error {
	return utils.NewStructuredError("PLANNING_FAILED", "Planning failed", utils.CategoryExecution,
		fmt.Errorf("%w: %v", ErrPlanningFailed, cause)).WithOperation("generate_plan")
}
