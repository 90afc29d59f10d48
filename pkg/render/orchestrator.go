// Package render turns a validated plan into image files: one job per room,
// one for the exterior, run one after another against the image
// collaborator.
package render

import (
	"context"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	"github.com/alantheprice/housegen/pkg/house"
	"github.com/alantheprice/housegen/pkg/utils"
)

// SkipNoImage is the reason recorded when a reply carries no usable image.
const SkipNoImage = "text only or credit limit"

type Options struct {
	Model            string
	MaxTokens        int
	MaxRoomsPerFloor int
	// OnResult, if set, is called after each job in render order.
	OnResult func(job house.RenderJob, outcome house.RenderOutcome)
}

type Orchestrator struct {
	client api.ChatClient
	sink   Sink
	opts   Options
	logger *utils.Logger
}

func NewOrchestrator(client api.ChatClient, sink Sink, opts Options, logger *utils.Logger) *Orchestrator {
	if opts.MaxRoomsPerFloor <= 0 {
		opts.MaxRoomsPerFloor = house.MaxRoomsPerFloor
	}
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Orchestrator{client: client, sink: sink, opts: opts, logger: logger}
}

// RenderPlan renders every room then the exterior. A floor over the room
// limit fails the whole call with house.ErrRoomsOutOfBound before any job is
// attempted; every other failure becomes a Skipped outcome.
func (o *Orchestrator) RenderPlan(ctx context.Context, plan house.HousePlan) ([]house.RenderResult, error) {
	if err := house.CheckRoomBound(plan, o.opts.MaxRoomsPerFloor); err != nil {
		return nil, err
	}

	jobs := house.Jobs(plan)
	results := make([]house.RenderResult, 0, len(jobs))
	for _, job := range jobs {
		outcome := o.RenderJob(ctx, job)
		results = append(results, house.RenderResult{Target: job.Target, Outcome: outcome})
		if o.opts.OnResult != nil {
			o.opts.OnResult(job, outcome)
		}
	}
	return results, nil
}

// RenderJob makes exactly one image request for job.
func (o *Orchestrator) RenderJob(ctx context.Context, job house.RenderJob) house.RenderOutcome {
	resp, err := o.client.SendChatRequest(ctx, &api.ChatRequest{
		Model:     o.opts.Model,
		MaxTokens: o.opts.MaxTokens,
		Messages:  []api.Message{{Role: "user", Content: job.Prompt}},
	})
	if err != nil {
		o.logger.Warnf("render %s skipped: %v", job.Target, err)
		return house.Skipped{Reason: err.Error()}
	}

	if resp.HasError() {
		o.logger.Warnf("render %s skipped: %s", job.Target, resp.Error.Message)
		return house.Skipped{Reason: resp.Error.Message}
	}

	data, extractErr := TryExtractImage(resp)
	if extractErr != nil {
		o.logger.Warnf("render %s skipped: %v", job.Target, extractErr)
		return house.Skipped{Reason: SkipNoImage}
	}

	path, err := o.sink.Save(job.TargetFilename, data)
	if err != nil {
		o.logger.Warnf("render %s skipped: %v", job.Target, err)
		return house.Skipped{Reason: err.Error()}
	}

	o.logger.Logf("render %s saved to %s (%d bytes)", job.Target, path, len(data))
	return house.Saved{Path: path}
}
