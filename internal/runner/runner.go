// Package runner drives the per-turn loop: ask the sequencer for a
// directive, call the generation service with a context bundle, apply the
// validated result, and append the turn to the memory store. A failed or
// malformed generation call is a failed turn: no state mutates and the same
// directive can be retried.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storyloom/storyloom/internal/services"
	"github.com/storyloom/storyloom/pkg/flow"
	"github.com/storyloom/storyloom/pkg/memory"
	"github.com/storyloom/storyloom/pkg/state"
	"github.com/storyloom/storyloom/pkg/story"
)

const (
	// recentTurnLimit bounds how many turn records go into a context bundle.
	recentTurnLimit = 5
	// memoryLimit bounds how many ranked memories go into a context bundle.
	memoryLimit = 8
)

// SaveData is the serializable form of a full playthrough: sequencer
// snapshot plus memory items. loadGame(saveGame()) reproduces an equivalent
// session.
type SaveData struct {
	// StoryFile is the filename the story was loaded from, so a save can be
	// reopened without the caller remembering which story it belongs to.
	StoryFile string        `json:"story_file,omitempty"`
	Flow      flow.Snapshot `json:"flow"`
	Memories  []memory.Item `json:"memories,omitempty"`
}

// Runner owns one session's turn loop. Like the game it wraps, it is meant
// for a single owning execution context; independent sessions get
// independent runners.
type Runner struct {
	game   *flow.Game
	mem    *memory.Store
	gen    services.Generator
	logger *slog.Logger
}

// StepResult reports one completed turn.
type StepResult struct {
	Directive         flow.Directive `json:"directive"`
	Narrative         string         `json:"narrative"`
	Importance        int            `json:"importance"`
	Complete          bool           `json:"complete"`
	EndingID          string         `json:"ending_id,omitempty"`
	EndingDescription string         `json:"ending_description,omitempty"`
}

// New creates a runner over prepared collaborators.
func New(game *flow.Game, mem *memory.Store, gen services.Generator, logger *slog.Logger) (*Runner, error) {
	if game == nil || mem == nil || gen == nil {
		return nil, fmt.Errorf("game, memory store and generator are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{game: game, mem: mem, gen: gen, logger: logger}, nil
}

// Game exposes the underlying sequencer.
func (r *Runner) Game() *flow.Game { return r.game }

// Session returns a read-only session snapshot.
func (r *Runner) Session() state.Session { return r.game.Session() }

// Memories returns up to limit ranked memories.
func (r *Runner) Memories(limit int) memory.Result { return r.mem.Get(limit) }

// Step runs one full turn. It returns flow.ErrSessionComplete once the
// session has ended, and a generation error when the external call failed;
// in that case nothing was applied and the caller may retry.
func (r *Runner) Step(ctx context.Context, playerInput string) (*StepResult, error) {
	directive, err := r.game.NextDirective()
	if err != nil {
		return nil, err
	}

	// NextDirective may have completed the session itself on an authoring
	// error (dead-end scene); report that as a terminal step.
	if sess := r.game.Session(); sess.IsComplete {
		return r.terminalResult(directive, sess), nil
	}

	sess := r.game.Session()
	req := services.GenerationRequest{
		StoryName:   sess.StoryName,
		Directive:   directive,
		PlayerInput: playerInput,
		Vars:        sess.Vars,
		RecentTurns: sess.RecentTurns(recentTurnLimit),
		Memories:    r.mem.Get(memoryLimit).Memories,
	}

	result, err := r.gen.Generate(ctx, req)
	if err != nil {
		r.logger.Warn("generation failed, turn not applied",
			"session", sess.ID, "directive", directive.Type, "key", directive.Key, "error", err)
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if err := result.Validate(); err != nil {
		r.logger.Warn("generation result rejected, turn not applied",
			"session", sess.ID, "error", err)
		return nil, fmt.Errorf("generation result rejected: %w", err)
	}

	if err := r.game.Apply(result.Choice()); err != nil {
		if errors.Is(err, flow.ErrSessionComplete) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to apply choice: %w", err)
	}

	r.mem.Add(ctx, result.Narrative, result.Importance)

	after := r.game.Session()
	step := &StepResult{
		Directive:  directive,
		Narrative:  result.Narrative,
		Importance: result.Importance,
		Complete:   after.IsComplete,
		EndingID:   after.EndingID,
	}
	if ending, ok := r.game.Ending(); ok {
		step.EndingDescription = ending.Description
	}
	return step, nil
}

func (r *Runner) terminalResult(directive flow.Directive, sess state.Session) *StepResult {
	step := &StepResult{
		Directive: directive,
		Complete:  true,
		EndingID:  sess.EndingID,
	}
	if ending, ok := r.game.Ending(); ok {
		step.EndingDescription = ending.Description
	}
	return step
}

// Save captures the playthrough for persistence.
func (r *Runner) Save() *SaveData {
	return &SaveData{
		Flow:     r.game.Save(),
		Memories: r.mem.Items(),
	}
}

// Load rebuilds a runner from saved data. The memory store is restored in
// place, so pass a freshly constructed one with the desired summarizer and
// options.
func Load(st *story.Story, data *SaveData, mem *memory.Store, gen services.Generator, logger *slog.Logger) (*Runner, error) {
	if data == nil {
		return nil, fmt.Errorf("save data is required")
	}
	game, err := flow.Restore(st, data.Flow, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to restore game: %w", err)
	}
	if mem == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	mem.Restore(data.Memories)
	return New(game, mem, gen, logger)
}
