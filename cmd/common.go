package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	providers "github.com/alantheprice/housegen/pkg/agent_providers"
	"github.com/alantheprice/housegen/pkg/configuration"
	"github.com/alantheprice/housegen/pkg/house"
	"github.com/alantheprice/housegen/pkg/metrics"
	"github.com/alantheprice/housegen/pkg/pipeline"
	"github.com/alantheprice/housegen/pkg/render"
	"github.com/alantheprice/housegen/pkg/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const planFileName = "plan.json"

// session holds what one command invocation needs to talk to collaborators.
type session struct {
	cfg     *configuration.Config
	logger  *utils.Logger
	metrics *metrics.Recorder
	runLog  *utils.RunLog
	text    api.ChatClient
	image   api.ChatClient
}

// openSession loads config and creates clients. The image client is only
// created when withImages is set, so text-only commands work without an
// OpenRouter key when Ollama is the text provider.
func (o *rootOptions) openSession(withImages bool) (*session, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:     cfg,
		logger:  utils.NewLogger(cfg.Logging.File, cfg.Logging.JSON),
		metrics: metrics.NewRecorder(),
	}

	s.text, err = providers.NewTextProvider(cfg.TextProvider())
	if err != nil {
		s.logger.Close()
		return nil, utils.NewConfigError("provider", err)
	}
	if withImages {
		s.image, err = providers.NewImageProvider(cfg.ImageProvider())
		if err != nil {
			s.logger.Close()
			return nil, utils.NewConfigError("provider", err)
		}
	}

	runLogDir := filepath.Join(filepath.Dir(cfg.Logging.File), "runlogs")
	s.runLog, err = utils.OpenRunLog(runLogDir, time.Now().Format("20060102_150405"), cfg.Provider.APIKey)
	if err != nil {
		s.logger.Warnf("run log disabled: %v", err)
	}
	return s, nil
}

func (s *session) controller(observer pipeline.Observer) *pipeline.Controller {
	return pipeline.New(pipeline.Config{
		ValidatorModel:     s.cfg.Models.Validator,
		PlannerModel:       s.cfg.Models.Planner,
		ImageModel:         s.cfg.Models.Image,
		ImageMaxTokens:     s.cfg.Models.ImageMaxTokens,
		MaxRoomsPerFloor:   s.cfg.Pipeline.MaxRoomsPerFloor,
		RequireValidDomain: s.cfg.Pipeline.RequireValidDomain,
	}, pipeline.Deps{
		TextClient:  s.text,
		ImageClient: s.image,
		Sink:        render.FileSink{Dir: s.cfg.Output.Dir},
		Logger:      s.logger,
		Metrics:     s.metrics,
		RunLog:      s.runLog,
		Observer:    observer,
	})
}

// Close flushes metrics and closes log files.
func (s *session) Close() {
	if s.cfg.Output.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cfg.Output.MetricsFile); err != nil {
			s.logger.LogError(err)
		}
	}
	_ = s.runLog.Close()
	_ = s.logger.Close()
}

// readDescription takes the description from args, then --file, then stdin.
// An interactive terminal gets a one-line prompt.
func readDescription(cmd *cobra.Command, args []string, file string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read description: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Describe the house: ")
		line, err := bufio.NewReader(f).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read description: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read description: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// savePlan writes plan.json into dir and returns a diff against the file it
// replaced, empty when there was none or nothing changed.
func savePlan(dir string, plan house.HousePlan) (string, string, error) {
	path := filepath.Join(dir, planFileName)
	data, err := house.EncodePlan(plan)
	if err != nil {
		return path, "", err
	}

	previous, readErr := os.ReadFile(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return path, "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return path, "", fmt.Errorf("failed to write plan: %w", err)
	}
	if readErr != nil {
		return path, "", nil
	}
	return path, house.DiffPlans(string(previous), string(data)), nil
}

// loadPlan reads a plan.json written by savePlan or by hand.
func loadPlan(path string) (house.HousePlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return house.HousePlan{}, fmt.Errorf("failed to read plan: %w", err)
	}
	resp, err := house.DecodePlanResponse(data)
	if err != nil {
		return house.HousePlan{}, err
	}
	switch p := resp.(type) {
	case house.HousePlan:
		return p, nil
	case house.PlanError:
		return house.HousePlan{}, fmt.Errorf("%w: %s", pipeline.ErrPlanRejected, p.Error)
	}
	return house.HousePlan{}, house.ErrPlanMalformed
}

var titler = cases.Title(language.English)

// caption is the label shown next to a rendered image.
func caption(t house.RenderTarget) string {
	if t.Exterior {
		return "Exterior"
	}
	return fmt.Sprintf("%s (Floor %d)", titler.String(t.Room), t.Floor)
}

// abortedError turns an aborted run into a non-zero exit.
type abortedError struct {
	pipeline.Aborted
}

func (e *abortedError) Error() string {
	return fmt.Sprintf("run aborted during %s: %s", e.Stage, e.Reason)
}

func (e *abortedError) Unwrap() error {
	return e.Err
}

func printOutcome(w io.Writer, target house.RenderTarget, outcome house.RenderOutcome) {
	switch o := outcome.(type) {
	case house.Saved:
		fmt.Fprintf(w, "  ✅ %s → %s\n", caption(target), o.Path)
	case house.Skipped:
		fmt.Fprintf(w, "  ⚠️  %s skipped: %s\n", caption(target), o.Reason)
	}
}

// printSummary reports how many renders were saved and skipped.
func printSummary(w io.Writer, outcomes []house.RenderResult) {
	saved := 0
	for _, r := range outcomes {
		if _, ok := r.Outcome.(house.Saved); ok {
			saved++
		}
	}
	fmt.Fprintf(w, "%d saved, %d skipped\n", saved, len(outcomes)-saved)
}
