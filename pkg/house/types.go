// Package house holds the data model shared by every pipeline stage: the
// validator's classification, the structured plan, render jobs and their
// outcomes.
package house

import (
	"errors"
	"fmt"
)

// MaxRoomsPerFloor is the default per-floor room limit enforced before
// rendering and announced to the planner.
const MaxRoomsPerFloor = 5

// ErrRoomsOutOfBound is returned when any floor holds more rooms than allowed.
var ErrRoomsOutOfBound = errors.New("rooms out of bound")

// ValidationResult is the Domain Validator's verdict on raw user text.
type ValidationResult struct {
	IsValid           bool     `json:"is_valid"`
	RefinedPrompt     string   `json:"refined_prompt"`
	TotalRooms        *int     `json:"total_rooms"`
	HouseDimensions   *string  `json:"house_dimensions"`
	InteriorFurniture []string `json:"interior_furniture"`
}

// Invalid is the degraded result used whenever classification fails.
func Invalid() ValidationResult {
	return ValidationResult{IsValid: false, RefinedPrompt: "", InteriorFurniture: []string{}}
}

type RoomSpec struct {
	Name     string  `json:"name"`
	WidthFt  float64 `json:"width_ft"`
	LengthFt float64 `json:"length_ft"`
	Style    string  `json:"style"`
}

type FloorSpec struct {
	FloorNumber int        `json:"floor_number"`
	Rooms       []RoomSpec `json:"rooms"`
}

// PlanResponse is exactly one of HousePlan or PlanError.
type PlanResponse interface {
	isPlanResponse()
}

type HousePlan struct {
	Floors        []FloorSpec `json:"floors"`
	ExteriorStyle string      `json:"exterior_style"`
}

// PlanError is the planner's explicit refusal, e.g. {"error": "rooms out of bound"}.
type PlanError struct {
	Error string `json:"error"`
}

func (HousePlan) isPlanResponse() {}
func (PlanError) isPlanResponse() {}

// RoomCount returns the number of rooms across all floors.
func (p HousePlan) RoomCount() int {
	n := 0
	for _, f := range p.Floors {
		n += len(f.Rooms)
	}
	return n
}

// CheckRoomBound reports ErrRoomsOutOfBound if any floor has more than max
// rooms. Exactly max is allowed.
func CheckRoomBound(plan HousePlan, max int) error {
	for _, floor := range plan.Floors {
		if len(floor.Rooms) > max {
			return fmt.Errorf("floor %d has %d rooms (max %d): %w", floor.FloorNumber, len(floor.Rooms), max, ErrRoomsOutOfBound)
		}
	}
	return nil
}

// RenderTarget identifies what a render job depicts.
type RenderTarget struct {
	Exterior bool
	Floor    int
	Room     string
}

func (t RenderTarget) String() string {
	if t.Exterior {
		return "exterior"
	}
	return fmt.Sprintf("floor %d / %s", t.Floor, t.Room)
}

// RenderJob is one image request, built and consumed within a single run.
type RenderJob struct {
	Target         RenderTarget
	Prompt         string
	TargetFilename string
}

// RenderOutcome is exactly one of Saved or Skipped.
type RenderOutcome interface {
	isRenderOutcome()
}

type Saved struct {
	Path string
}

type Skipped struct {
	Reason string
}

func (Saved) isRenderOutcome()   {}
func (Skipped) isRenderOutcome() {}

// RenderResult pairs a target with what happened to it.
type RenderResult struct {
	Target  RenderTarget
	Outcome RenderOutcome
}
