// Package pipeline drives one request from free text to rendered images:
// validate, plan, bound-check, render. Every run is synchronous and stops at
// the first fatal stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	"github.com/alantheprice/housegen/pkg/house"
	"github.com/alantheprice/housegen/pkg/metrics"
	"github.com/alantheprice/housegen/pkg/planner"
	"github.com/alantheprice/housegen/pkg/render"
	"github.com/alantheprice/housegen/pkg/utils"
	"github.com/alantheprice/housegen/pkg/validator"
	"github.com/google/uuid"
)

type Stage string

const (
	StageStart         Stage = "start"
	StageValidating    Stage = "validating"
	StagePlanning      Stage = "planning"
	StageBoundChecking Stage = "bound_checking"
	StageRendering     Stage = "rendering"
	StageDone          Stage = "done"
)

var (
	ErrEmptyInput    = errors.New("enter something first")
	ErrInvalidDomain = errors.New("request is not about house design")
	ErrPlanRejected  = errors.New("planner rejected the request")
)

// Result is exactly one of Aborted or Completed.
type Result interface {
	isResult()
}

// Aborted is a run that stopped at Stage. Reason is what a user is shown.
type Aborted struct {
	Stage  Stage
	Reason string
	Err    error
}

type Completed struct {
	Validation house.ValidationResult
	Plan       house.HousePlan
	Outcomes   []house.RenderResult
}

func (Aborted) isResult()   {}
func (Completed) isResult() {}

// Event reports progress. Only the fields relevant to Stage are set.
type Event struct {
	RunID      string
	Stage      Stage
	Validation *house.ValidationResult
	Plan       *house.HousePlan
	Target     *house.RenderTarget
	Outcome    house.RenderOutcome
	Aborted    *Aborted
}

// Observer receives events synchronously, in order, on the calling goroutine.
type Observer func(Event)

// Config holds the per-run settings. It is passed in explicitly; nothing is
// read from the environment here.
type Config struct {
	ValidatorModel     string
	PlannerModel       string
	ImageModel         string
	ImageMaxTokens     int
	MaxRoomsPerFloor   int
	RequireValidDomain bool
}

// Deps are the collaborators a Controller talks to. Logger, Metrics, RunLog
// and Observer are optional.
type Deps struct {
	TextClient  api.ChatClient
	ImageClient api.ChatClient
	Sink        render.Sink
	Logger      *utils.Logger
	Metrics     *metrics.Recorder
	RunLog      *utils.RunLog
	Observer    Observer
}

type Controller struct {
	cfg       Config
	validator *validator.Validator
	planner   *planner.Planner
	renderer  *render.Orchestrator
	logger    *utils.Logger
	metrics   *metrics.Recorder
	runLog    *utils.RunLog
	observer  Observer
	runID     string
}

func New(cfg Config, deps Deps) *Controller {
	if cfg.MaxRoomsPerFloor <= 0 {
		cfg.MaxRoomsPerFloor = house.MaxRoomsPerFloor
	}
	if deps.Logger == nil {
		deps.Logger = utils.NopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRecorder()
	}

	c := &Controller{
		cfg:      cfg,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		runLog:   deps.RunLog,
		observer: deps.Observer,
	}
	c.validator = validator.New(c.counted("validator", deps.TextClient), cfg.ValidatorModel, c.logger)
	c.planner = planner.New(c.counted("planner", deps.TextClient), cfg.PlannerModel, cfg.MaxRoomsPerFloor, c.logger)
	c.renderer = render.NewOrchestrator(c.counted("image", deps.ImageClient), deps.Sink, render.Options{
		Model:            cfg.ImageModel,
		MaxTokens:        cfg.ImageMaxTokens,
		MaxRoomsPerFloor: cfg.MaxRoomsPerFloor,
		OnResult:         c.onRenderResult,
	}, c.logger)
	return c
}

// counted wraps client so every request is tallied under role.
func (c *Controller) counted(role string, client api.ChatClient) api.ChatClient {
	return api.ChatClientFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
		c.metrics.Request(role)
		return client.SendChatRequest(ctx, req)
	})
}

// Run executes one request end to end. It never panics on collaborator
// misbehaviour and never returns a nil Result.
func (c *Controller) Run(ctx context.Context, userText string) Result {
	c.runID = uuid.NewString()
	c.logger.WithCorrelationID(c.runID)
	c.emit(Event{Stage: StageStart})

	if strings.TrimSpace(userText) == "" {
		return c.abort(StageStart, ErrEmptyInput.Error(), ErrEmptyInput)
	}

	started := time.Now()
	c.emit(Event{Stage: StageValidating})
	validation := c.validator.Validate(ctx, userText)
	c.metrics.ObserveStage(string(StageValidating), started)
	c.logger.LogStage(string(StageValidating), map[string]any{"is_valid": validation.IsValid})
	c.emit(Event{Stage: StageValidating, Validation: &validation})
	if !validation.IsValid {
		if c.cfg.RequireValidDomain {
			return c.abort(StageValidating, ErrInvalidDomain.Error(), ErrInvalidDomain)
		}
		c.logger.Warnf("validator rejected the request; continuing with raw text")
	}

	started = time.Now()
	c.emit(Event{Stage: StagePlanning})
	resp, err := c.planner.GeneratePlan(ctx, userText)
	c.metrics.ObserveStage(string(StagePlanning), started)
	if err != nil {
		return c.abort(StagePlanning, err.Error(), err)
	}

	var plan house.HousePlan
	switch p := resp.(type) {
	case house.PlanError:
		return c.abort(StagePlanning, p.Error, fmt.Errorf("%w: %s", ErrPlanRejected, p.Error))
	case house.HousePlan:
		plan = p
	}
	c.logger.LogStage(string(StagePlanning), map[string]any{"floors": len(plan.Floors), "rooms": plan.RoomCount()})
	c.emit(Event{Stage: StagePlanning, Plan: &plan})

	c.emit(Event{Stage: StageBoundChecking})
	if err := house.CheckRoomBound(plan, c.cfg.MaxRoomsPerFloor); err != nil {
		return c.abort(StageBoundChecking, house.ErrRoomsOutOfBound.Error(), err)
	}

	started = time.Now()
	c.emit(Event{Stage: StageRendering})
	outcomes, err := c.renderer.RenderPlan(ctx, plan)
	c.metrics.ObserveStage(string(StageRendering), started)
	if err != nil {
		return c.abort(StageBoundChecking, house.ErrRoomsOutOfBound.Error(), err)
	}

	return c.complete(Completed{Validation: validation, Plan: plan, Outcomes: outcomes})
}

// RenderOnly bound-checks and renders a plan that was produced earlier.
func (c *Controller) RenderOnly(ctx context.Context, plan house.HousePlan) Result {
	c.runID = uuid.NewString()
	c.logger.WithCorrelationID(c.runID)
	c.emit(Event{Stage: StageBoundChecking})
	if err := house.CheckRoomBound(plan, c.cfg.MaxRoomsPerFloor); err != nil {
		return c.abort(StageBoundChecking, house.ErrRoomsOutOfBound.Error(), err)
	}

	started := time.Now()
	c.emit(Event{Stage: StageRendering})
	outcomes, err := c.renderer.RenderPlan(ctx, plan)
	c.metrics.ObserveStage(string(StageRendering), started)
	if err != nil {
		return c.abort(StageBoundChecking, house.ErrRoomsOutOfBound.Error(), err)
	}
	return c.complete(Completed{Plan: plan, Outcomes: outcomes})
}

// Validator and Planner expose the single-stage collaborators for callers
// that only need one step.
func (c *Controller) Validator() *validator.Validator { return c.validator }
func (c *Controller) Planner() *planner.Planner       { return c.planner }

// RunID is the id of the most recent run, empty before the first.
func (c *Controller) RunID() string { return c.runID }

func (c *Controller) onRenderResult(job house.RenderJob, outcome house.RenderOutcome) {
	target := job.Target
	fields := map[string]any{"target": target.String()}
	switch o := outcome.(type) {
	case house.Saved:
		c.metrics.Render("saved")
		fields["saved"] = o.Path
	case house.Skipped:
		c.metrics.Render("skipped")
		fields["skipped"] = o.Reason
	}
	c.runLog.LogEvent("render", fields)
	c.emit(Event{Stage: StageRendering, Target: &target, Outcome: outcome})
}

func (c *Controller) complete(done Completed) Completed {
	fields := map[string]any{"renders": len(done.Outcomes)}
	c.metrics.Run("completed")
	c.logger.LogStage(string(StageDone), fields)
	c.emit(Event{Stage: StageDone})
	c.runLog.LogEvent("done", fields)
	return done
}

func (c *Controller) abort(stage Stage, reason string, err error) Aborted {
	a := Aborted{Stage: stage, Reason: reason, Err: err}
	c.metrics.Run("aborted")
	c.logger.LogError(fmt.Errorf("run aborted at %s: %w", stage, err))
	c.runLog.LogEvent("aborted", map[string]any{"stage": string(stage), "reason": reason})
	c.emit(Event{Stage: stage, Aborted: &a})
	return a
}

func (c *Controller) emit(ev Event) {
	ev.RunID = c.runID
	// done is written by complete with its render count
	if ev.Stage != StageDone && ev.Validation == nil && ev.Plan == nil && ev.Target == nil && ev.Aborted == nil {
		c.runLog.LogEvent("stage", map[string]any{"stage": string(ev.Stage)})
	}
	if c.observer != nil {
		c.observer(ev)
	}
}
