// Package services holds the external collaborators the core consumes: the
// narrative generation service and the memory summarization service, with
// Anthropic and OpenAI implementations plus mocks for tests.
package services

import (
	"context"
	"fmt"

	"github.com/storyloom/storyloom/pkg/flow"
	"github.com/storyloom/storyloom/pkg/state"
)

// GenerationRequest is the context bundle for one directive: what to
// generate, the facts established so far, and recent history. Only the
// facts relevant to the decision are exposed; the generator never sees
// internal bookkeeping.
type GenerationRequest struct {
	StoryName   string             `json:"story_name"`
	Directive   flow.Directive     `json:"directive"`
	PlayerInput string             `json:"player_input,omitempty"`
	Vars        state.State        `json:"vars"`
	RecentTurns []state.TurnRecord `json:"recent_turns,omitempty"`
	Memories    []string           `json:"memories,omitempty"`
}

// GenerationResult is the structured outcome of a generation call. It is
// only constructed from a fully-returned, fully-validated response; a
// failed or malformed call produces no result and no state mutation.
type GenerationResult struct {
	Narrative  string         `json:"narrative"`
	Effects    map[string]any `json:"effects,omitempty"`
	Importance int            `json:"importance"`
}

// Validate rejects results the sequencer must never apply.
func (r *GenerationResult) Validate() error {
	if r.Narrative == "" {
		return fmt.Errorf("generation result has no narrative")
	}
	if r.Importance < 0 || r.Importance > 10 {
		return fmt.Errorf("generation result importance %d out of range [0,10]", r.Importance)
	}
	for key, v := range r.Effects {
		if key == "" {
			return fmt.Errorf("generation result has an effect with an empty key")
		}
		switch v.(type) {
		case bool, string, float64, int, int64:
		default:
			return fmt.Errorf("effect %q is not a scalar (got %T)", key, v)
		}
	}
	return nil
}

// Choice converts a validated result into the sequencer's input.
func (r *GenerationResult) Choice() flow.Choice {
	return flow.Choice{
		Narrative:  r.Narrative,
		Effects:    r.Effects,
		Importance: r.Importance,
	}
}

// Generator is the narrative generation service. Any error means "do not
// mutate state"; retrying the same directive is the caller's decision.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}
