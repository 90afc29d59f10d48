package pipeline

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	providers "github.com/alantheprice/housegen/pkg/agent_providers"
	"github.com/alantheprice/housegen/pkg/house"
	"github.com/alantheprice/housegen/pkg/metrics"
	"github.com/alantheprice/housegen/pkg/planner"
	"github.com/alantheprice/housegen/pkg/render"
	"github.com/alantheprice/housegen/pkg/utils"
	"github.com/alantheprice/housegen/pkg/validator"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var png = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

const validReply = `{"is_valid": true, "refined_prompt": "a small modern house", "total_rooms": 5, "house_dimensions": null, "interior_furniture": ["sofa"]}`

func textReply(content string) *api.ChatResponse {
	resp := &api.ChatResponse{Choices: make([]api.Choice, 1)}
	resp.Choices[0].Message.Content = content
	return resp
}

func imageReply() *api.ChatResponse {
	resp := &api.ChatResponse{Choices: make([]api.Choice, 1)}
	resp.Choices[0].Message.Images = []api.ImageOutput{{
		Type:     "image_url",
		ImageURL: api.ImageURL{URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)},
	}}
	return resp
}

func planJSON(roomsPerFloor ...int) string {
	plan := house.HousePlan{ExteriorStyle: "modern minimalist house"}
	for i, n := range roomsPerFloor {
		floor := house.FloorSpec{FloorNumber: i + 1}
		for r := 0; r < n; r++ {
			floor.Rooms = append(floor.Rooms, house.RoomSpec{Name: fmt.Sprintf("Room %d", r+1), WidthFt: 10, LengthFt: 12, Style: "modern"})
		}
		plan.Floors = append(plan.Floors, floor)
	}
	data, _ := json.Marshal(plan)
	return string(data)
}

// fakes routes text requests by system prompt and counts every call.
type fakes struct {
	validatorReply func() (*api.ChatResponse, error)
	plannerReply   func() (*api.ChatResponse, error)
	imageReply     func(prompt string) (*api.ChatResponse, error)

	validatorCalls, plannerCalls int
	imagePrompts                 []string
	plannerInput                 string
}

func newFakes(plan string) *fakes {
	return &fakes{
		validatorReply: func() (*api.ChatResponse, error) { return textReply(validReply), nil },
		plannerReply:   func() (*api.ChatResponse, error) { return textReply(plan), nil },
		imageReply:     func(string) (*api.ChatResponse, error) { return imageReply(), nil },
	}
}

func (f *fakes) text() api.ChatClient {
	return api.ChatClientFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
		if req.Messages[0].Content == validator.SystemPrompt {
			f.validatorCalls++
			return f.validatorReply()
		}
		f.plannerCalls++
		f.plannerInput = req.Messages[1].Content
		return f.plannerReply()
	})
}

func (f *fakes) image() api.ChatClient {
	return api.ChatClientFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
		f.imagePrompts = append(f.imagePrompts, req.Messages[0].Content)
		return f.imageReply(req.Messages[0].Content)
	})
}

func testConfig() Config {
	return Config{
		ValidatorModel:   "openai/gpt-oss-120b:free",
		PlannerModel:     "openai/gpt-oss-120b:free",
		ImageModel:       "google/gemini-2.5-flash-image",
		ImageMaxTokens:   1024,
		MaxRoomsPerFloor: 5,
	}
}

func newController(t *testing.T, f *fakes, cfg Config, observer Observer) (*Controller, string, *metrics.Recorder) {
	t.Helper()
	dir := t.TempDir()
	rec := metrics.NewRecorder()
	c := New(cfg, Deps{
		TextClient:  f.text(),
		ImageClient: f.image(),
		Sink:        render.FileSink{Dir: dir},
		Metrics:     rec,
		Observer:    observer,
	})
	return c, dir, rec
}

func TestRun_FiveRoomsRendersSixImages(t *testing.T) {
	f := newFakes(planJSON(5))
	var stages []Stage
	c, dir, rec := newController(t, f, testConfig(), func(ev Event) {
		if len(stages) == 0 || stages[len(stages)-1] != ev.Stage {
			stages = append(stages, ev.Stage)
		}
	})

	result := c.Run(context.Background(), "a small modern house with 5 rooms")
	completed, ok := result.(Completed)
	require.True(t, ok, "got %#v", result)

	assert.True(t, completed.Validation.IsValid)
	assert.Equal(t, 5, completed.Plan.RoomCount())
	require.Len(t, completed.Outcomes, 6)
	assert.True(t, completed.Outcomes[5].Target.Exterior)
	for _, o := range completed.Outcomes {
		assert.IsType(t, house.Saved{}, o.Outcome)
	}
	assert.Len(t, f.imagePrompts, 6)
	assert.FileExists(t, filepath.Join(dir, "floor1_Room_5.png"))
	assert.FileExists(t, filepath.Join(dir, "exterior.png"))

	assert.Equal(t, []Stage{StageStart, StageValidating, StagePlanning, StageBoundChecking, StageRendering, StageDone}, stages)
	assert.NotEmpty(t, c.RunID())

	assert.Equal(t, 6.0, testutil.ToFloat64(rec.CollaboratorRequests.WithLabelValues("image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.CollaboratorRequests.WithLabelValues("validator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.CollaboratorRequests.WithLabelValues("planner")))
	assert.Equal(t, 6.0, testutil.ToFloat64(rec.RendersTotal.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RunsTotal.WithLabelValues("completed")))
}

func TestRun_SixRoomsAbortsBeforeRendering(t *testing.T) {
	f := newFakes(planJSON(6))
	c, dir, rec := newController(t, f, testConfig(), nil)

	result := c.Run(context.Background(), "a house with 6 rooms on one floor")
	aborted, ok := result.(Aborted)
	require.True(t, ok, "got %#v", result)

	assert.Equal(t, StageBoundChecking, aborted.Stage)
	assert.Equal(t, "rooms out of bound", aborted.Reason)
	assert.True(t, errors.Is(aborted.Err, house.ErrRoomsOutOfBound))
	assert.Empty(t, f.imagePrompts)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RunsTotal.WithLabelValues("aborted")))
}

func TestRun_BoundCheckCoversEveryFloor(t *testing.T) {
	f := newFakes(planJSON(2, 6))
	c, _, _ := newController(t, f, testConfig(), nil)

	aborted, ok := c.Run(context.Background(), "two floors").(Aborted)
	require.True(t, ok)
	assert.Equal(t, StageBoundChecking, aborted.Stage)
	assert.Empty(t, f.imagePrompts)
}

func TestRun_InsufficientCreditsSkipsEveryRender(t *testing.T) {
	f := newFakes(planJSON(2))
	f.imageReply = func(string) (*api.ChatResponse, error) {
		return &api.ChatResponse{Error: &api.APIError{Message: "insufficient credits", Code: 402}}, nil
	}
	c, dir, rec := newController(t, f, testConfig(), nil)

	completed, ok := c.Run(context.Background(), "a cottage").(Completed)
	require.True(t, ok)
	require.Len(t, completed.Outcomes, 3)
	for _, o := range completed.Outcomes {
		assert.Equal(t, house.Skipped{Reason: "insufficient credits"}, o.Outcome)
	}
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.RendersTotal.WithLabelValues("skipped")))
}

func TestRun_PlannerRefusalAborts(t *testing.T) {
	f := newFakes(`{"error": "rooms out of bound"}`)
	c, _, _ := newController(t, f, testConfig(), nil)

	aborted, ok := c.Run(context.Background(), "a mansion with 40 rooms").(Aborted)
	require.True(t, ok)
	assert.Equal(t, StagePlanning, aborted.Stage)
	assert.Equal(t, "rooms out of bound", aborted.Reason)
	assert.ErrorIs(t, aborted.Err, ErrPlanRejected)
	assert.Empty(t, f.imagePrompts)
}

func TestRun_PlanningFailures(t *testing.T) {
	cases := map[string]struct {
		reply   func() (*api.ChatResponse, error)
		wantErr error
	}{
		"transport": {
			reply:   func() (*api.ChatResponse, error) { return nil, errors.New("dial tcp: connection refused") },
			wantErr: planner.ErrPlanningFailed,
		},
		"error payload": {
			reply:   func() (*api.ChatResponse, error) { return &api.ChatResponse{Error: &api.APIError{Message: "rate limited"}}, nil },
			wantErr: planner.ErrPlanningFailed,
		},
		"not json": {
			reply:   func() (*api.ChatResponse, error) { return textReply("Sure! Here's your house."), nil },
			wantErr: house.ErrPlanMalformed,
		},
		"no floors": {
			reply:   func() (*api.ChatResponse, error) { return textReply(`{"exterior_style": "barn"}`), nil },
			wantErr: house.ErrPlanMalformed,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFakes("")
			f.plannerReply = tc.reply
			c, _, _ := newController(t, f, testConfig(), nil)

			aborted, ok := c.Run(context.Background(), "a house").(Aborted)
			require.True(t, ok)
			assert.Equal(t, StagePlanning, aborted.Stage)
			assert.ErrorIs(t, aborted.Err, tc.wantErr)
			assert.NotEmpty(t, aborted.Reason)
			assert.Empty(t, f.imagePrompts)
		})
	}
}

func TestRun_InvalidDomainIsAdvisoryByDefault(t *testing.T) {
	f := newFakes(planJSON(1))
	f.validatorReply = func() (*api.ChatResponse, error) { return nil, errors.New("timeout") }
	c, _, _ := newController(t, f, testConfig(), nil)

	completed, ok := c.Run(context.Background(), "a treehouse").(Completed)
	require.True(t, ok)
	assert.False(t, completed.Validation.IsValid)
	assert.Equal(t, 1, f.plannerCalls)
	// the planner sees the raw text, not the refined prompt
	assert.Equal(t, "a treehouse", f.plannerInput)
}

func TestRun_StrictDomainGate(t *testing.T) {
	f := newFakes(planJSON(1))
	f.validatorReply = func() (*api.ChatResponse, error) {
		return textReply(`{"is_valid": false, "refined_prompt": ""}`), nil
	}
	cfg := testConfig()
	cfg.RequireValidDomain = true
	c, _, _ := newController(t, f, cfg, nil)

	aborted, ok := c.Run(context.Background(), "write me a poem").(Aborted)
	require.True(t, ok)
	assert.Equal(t, StageValidating, aborted.Stage)
	assert.ErrorIs(t, aborted.Err, ErrInvalidDomain)
	assert.Zero(t, f.plannerCalls)
	assert.Empty(t, f.imagePrompts)
}

func TestRun_EmptyInput(t *testing.T) {
	f := newFakes(planJSON(1))
	var events []Event
	c, _, _ := newController(t, f, testConfig(), func(ev Event) { events = append(events, ev) })

	aborted, ok := c.Run(context.Background(), "   \n").(Aborted)
	require.True(t, ok)
	assert.Equal(t, StageStart, aborted.Stage)
	assert.ErrorIs(t, aborted.Err, ErrEmptyInput)
	assert.Zero(t, f.validatorCalls)

	last := events[len(events)-1]
	require.NotNil(t, last.Aborted)
	assert.Equal(t, aborted, *last.Aborted)
}

func TestRun_RenderEventsFollowJobOrder(t *testing.T) {
	f := newFakes(planJSON(2, 1))
	var targets []house.RenderTarget
	c, _, _ := newController(t, f, testConfig(), func(ev Event) {
		if ev.Target != nil {
			targets = append(targets, *ev.Target)
		}
	})

	_, ok := c.Run(context.Background(), "two floors").(Completed)
	require.True(t, ok)
	assert.Equal(t, []house.RenderTarget{
		{Floor: 1, Room: "Room 1"},
		{Floor: 1, Room: "Room 2"},
		{Floor: 2, Room: "Room 1"},
		{Exterior: true},
	}, targets)
}

func TestRenderOnly(t *testing.T) {
	f := newFakes("")
	c, _, _ := newController(t, f, testConfig(), nil)

	plan, err := house.DecodePlanResponse([]byte(planJSON(3)))
	require.NoError(t, err)

	completed, ok := c.RenderOnly(context.Background(), plan.(house.HousePlan)).(Completed)
	require.True(t, ok)
	assert.Len(t, completed.Outcomes, 4)
	assert.Zero(t, f.validatorCalls+f.plannerCalls)

	tooBig, err := house.DecodePlanResponse([]byte(planJSON(7)))
	require.NoError(t, err)
	aborted, ok := c.RenderOnly(context.Background(), tooBig.(house.HousePlan)).(Aborted)
	require.True(t, ok)
	assert.Equal(t, StageBoundChecking, aborted.Stage)
}

func runLogTypes(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var types []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		types = append(types, rec["type"].(string))
	}
	return types
}

func TestRun_WritesRunLog(t *testing.T) {
	f := newFakes(planJSON(1))
	rl, err := utils.OpenRunLog(t.TempDir(), "run1")
	require.NoError(t, err)

	c := New(testConfig(), Deps{
		TextClient:  f.text(),
		ImageClient: f.image(),
		Sink:        render.FileSink{Dir: t.TempDir()},
		RunLog:      rl,
	})
	_, ok := c.Run(context.Background(), "a cabin").(Completed)
	require.True(t, ok)
	require.NoError(t, rl.Close())

	types := runLogTypes(t, rl.Path())
	assert.Contains(t, types, "stage")
	assert.Contains(t, types, "render")
	assert.Equal(t, "done", types[len(types)-1])
	assert.Equal(t, 1, countOf(types, "done"))
}

func TestRenderOnly_WritesDoneToRunLog(t *testing.T) {
	f := newFakes("")
	rl, err := utils.OpenRunLog(t.TempDir(), "render1")
	require.NoError(t, err)

	c := New(testConfig(), Deps{
		TextClient:  f.text(),
		ImageClient: f.image(),
		Sink:        render.FileSink{Dir: t.TempDir()},
		RunLog:      rl,
	})
	plan, err := house.DecodePlanResponse([]byte(planJSON(2)))
	require.NoError(t, err)
	_, ok := c.RenderOnly(context.Background(), plan.(house.HousePlan)).(Completed)
	require.True(t, ok)
	require.NoError(t, rl.Close())

	types := runLogTypes(t, rl.Path())
	assert.Equal(t, 3, countOf(types, "render"))
	assert.Equal(t, "done", types[len(types)-1])
	assert.Equal(t, 1, countOf(types, "done"))
}

func countOf(items []string, want string) int {
	n := 0
	for _, it := range items {
		if it == want {
			n++
		}
	}
	return n
}

// Full run over the OpenRouter wire format with one fake server standing in
// for all three collaborators.
func TestRun_OverOpenRouterWire(t *testing.T) {
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasPrefix(body.Model, "google/"):
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":"","images":[{"type":"image_url","image_url":{"url":%q}}]}}]}`, dataURI)
		case body.Messages[0].Content == validator.SystemPrompt:
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, validReply)
		default:
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, planJSON(2))
		}
	}))
	defer server.Close()

	client, err := providers.NewOpenRouterProvider(server.URL, "test-key")
	require.NoError(t, err)

	dir := t.TempDir()
	c := New(testConfig(), Deps{TextClient: client, ImageClient: client, Sink: render.FileSink{Dir: dir}})
	completed, ok := c.Run(context.Background(), "a small modern house").(Completed)
	require.True(t, ok)
	require.Len(t, completed.Outcomes, 3)

	data, err := os.ReadFile(filepath.Join(dir, "exterior.png"))
	require.NoError(t, err)
	assert.Equal(t, png, data)
}
