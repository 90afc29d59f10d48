package house

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPlanMalformed marks a plan reply that is not JSON or lacks the expected
// top-level shape.
var ErrPlanMalformed = errors.New("plan malformed")

// DecodePlanResponse parses a plan document into HousePlan or PlanError. No
// repair is attempted: an "error" key wins, otherwise "floors" must be present.
func DecodePlanResponse(data []byte) (PlanResponse, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanMalformed, err)
	}

	if raw, ok := top["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			msg = string(bytes.TrimSpace(raw))
		}
		return PlanError{Error: msg}, nil
	}

	raw, ok := top["floors"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("%w: missing \"floors\"", ErrPlanMalformed)
	}

	var plan HousePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanMalformed, err)
	}
	return plan, nil
}

// EncodePlan renders plan as indented JSON for display and plan.json.
func EncodePlan(plan HousePlan) ([]byte, error) {
	return json.MarshalIndent(plan, "", "  ")
}
