package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/services"
	"github.com/storyloom/storyloom/pkg/flow"
	"github.com/storyloom/storyloom/pkg/memory"
	"github.com/storyloom/storyloom/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStory() *story.Story {
	return &story.Story{
		Name:         "Lighthouse",
		OpeningScene: "shore",
		Scenes: map[string]story.Scene{
			"shore": {
				Goal:   "Reach the lighthouse before dark.",
				Blanks: []string{"boat_name"},
				Requirements: []story.Requirement{
					{Key: "crossing", Description: "The crossing is attempted."},
				},
				Default: "lantern_room",
			},
			"lantern_room": {
				Goal: "Light the lantern.",
				Requirements: []story.Requirement{
					{Key: "lantern_lit", Description: "The lantern is lit or ruined."},
				},
				Default: "dawn",
			},
		},
		Endings: map[string]story.Ending{
			"dawn": {Description: "Dawn finds the light burning."},
		},
	}
}

func newTestRunner(t *testing.T, gen services.Generator) *Runner {
	t.Helper()
	game, err := flow.NewGame(testStory(), testLogger())
	require.NoError(t, err)
	mem := memory.NewStore(nil, memory.WithLogger(testLogger()))
	r, err := New(game, mem, gen, testLogger())
	require.NoError(t, err)
	return r
}

func TestStep_FullPlaythrough(t *testing.T) {
	gen := services.NewMockGenerator()
	r := newTestRunner(t, gen)
	ctx := context.Background()

	// Turn 1: fill the blank.
	step, err := r.Step(ctx, "I take the gray skiff.")
	require.NoError(t, err)
	assert.Equal(t, flow.DirectiveFillBlank, step.Directive.Type)
	assert.Equal(t, "boat_name", step.Directive.Key)
	assert.False(t, step.Complete)

	// Turn 2: crossing requirement; default fires into lantern_room.
	step, err = r.Step(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, flow.DirectiveRequirement, step.Directive.Type)
	assert.Equal(t, "crossing", step.Directive.Key)
	assert.Equal(t, "lantern_room", r.Session().CurrentScene)

	// Turn 3: lantern requirement completes the story through the ending.
	step, err = r.Step(ctx, "")
	require.NoError(t, err)
	assert.True(t, step.Complete)
	assert.Equal(t, "dawn", step.EndingID)
	assert.Equal(t, "Dawn finds the light burning.", step.EndingDescription)

	// Further steps report completion.
	_, err = r.Step(ctx, "")
	assert.ErrorIs(t, err, flow.ErrSessionComplete)

	// Each applied turn became a memory.
	assert.Equal(t, 3, r.Memories(0).TotalCount)
}

func TestStep_GenerationFailureMutatesNothing(t *testing.T) {
	gen := services.NewMockGenerator()
	boom := errors.New("model unavailable")
	gen.GenerateFunc = func(ctx context.Context, req services.GenerationRequest) (*services.GenerationResult, error) {
		return nil, boom
	}
	r := newTestRunner(t, gen)
	ctx := context.Background()

	before := r.Session()
	_, err := r.Step(ctx, "hello?")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	after := r.Session()
	assert.Equal(t, before.CurrentScene, after.CurrentScene)
	assert.Len(t, after.Vars, 0)
	assert.Len(t, after.TurnHistory, 0)
	assert.Equal(t, 0, r.Memories(0).TotalCount)

	// Retry on the same directive succeeds once the service recovers.
	gen.GenerateFunc = nil
	step, err := r.Step(ctx, "hello again")
	require.NoError(t, err)
	assert.Equal(t, "boat_name", step.Directive.Key)
}

func TestStep_MalformedResultMutatesNothing(t *testing.T) {
	gen := services.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, req services.GenerationRequest) (*services.GenerationResult, error) {
		// Narrative missing: must be rejected before anything applies.
		return &services.GenerationResult{Importance: 3}, nil
	}
	r := newTestRunner(t, gen)

	_, err := r.Step(context.Background(), "")
	require.Error(t, err)
	assert.Len(t, r.Session().TurnHistory, 0)
	assert.Equal(t, 0, r.Memories(0).TotalCount)
}

func TestStep_ContextBundleContents(t *testing.T) {
	gen := services.NewMockGenerator()
	r := newTestRunner(t, gen)
	ctx := context.Background()

	_, err := r.Step(ctx, "the skiff is called Petrel")
	require.NoError(t, err)
	_, err = r.Step(ctx, "")
	require.NoError(t, err)

	require.Equal(t, 2, gen.CallCount())
	second := gen.GenerateCalls[1]
	assert.Equal(t, "Lighthouse", second.StoryName)
	assert.Equal(t, "crossing", second.Directive.Key)
	assert.Contains(t, second.Vars, "boat_name")
	require.Len(t, second.RecentTurns, 1)
	assert.NotEmpty(t, second.Memories)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	gen := services.NewMockGenerator()
	r := newTestRunner(t, gen)
	ctx := context.Background()

	_, err := r.Step(ctx, "")
	require.NoError(t, err)
	_, err = r.Step(ctx, "")
	require.NoError(t, err)

	data := r.Save()

	mem := memory.NewStore(nil, memory.WithLogger(testLogger()))
	restored, err := Load(testStory(), data, mem, gen, testLogger())
	require.NoError(t, err)

	origSess := r.Session()
	gotSess := restored.Session()
	assert.Equal(t, origSess.CurrentScene, gotSess.CurrentScene)
	assert.Equal(t, origSess.Vars, gotSess.Vars)
	assert.Equal(t, len(origSess.TurnHistory), len(gotSess.TurnHistory))

	origMem := r.Memories(0)
	gotMem := restored.Memories(0)
	assert.Equal(t, origMem.TotalCount, gotMem.TotalCount)
	assert.Equal(t, origMem.Memories, gotMem.Memories)

	// The restored runner continues from where the save left off.
	step, err := restored.Step(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "lantern_lit", step.Directive.Key)
}
