// Package flow is the turn sequencer. It owns the session aggregate, walks
// the story's scene graph, decides which blank or requirement to ask the
// generator for next, applies structured generation results to state, and
// fires guarded transitions.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storyloom/storyloom/pkg/cond"
	"github.com/storyloom/storyloom/pkg/state"
	"github.com/storyloom/storyloom/pkg/story"
)

// ErrSessionComplete is returned by NextDirective and Apply once a session
// has reached an ending. Completion is monotonic: no further call mutates
// the scene or the state snapshot.
var ErrSessionComplete = errors.New("session is complete")

// Phase tracks where a game is in its turn cycle.
type Phase int

const (
	PhaseAwaitingDirective Phase = iota
	PhaseGenerating
	PhaseApplying
	PhaseSceneLoading
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingDirective:
		return "awaiting_directive"
	case PhaseGenerating:
		return "generating"
	case PhaseApplying:
		return "applying"
	case PhaseSceneLoading:
		return "scene_loading"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

// DirectiveType discriminates what a directive asks the generator to do.
type DirectiveType string

const (
	DirectiveFillBlank   DirectiveType = "blank"       // establish a player-choice key
	DirectiveRequirement DirectiveType = "requirement" // resolve a scene requirement
	DirectiveNone        DirectiveType = "none"        // scene has no outstanding work
)

// Directive is the unit of work handed to the generator each turn.
type Directive struct {
	Type        DirectiveType `json:"type"`
	Key         string        `json:"key,omitempty"`
	Description string        `json:"description,omitempty"`
	SceneID     string        `json:"scene_id"`
	SceneGoal   string        `json:"scene_goal"`
}

// Choice is a fully-validated generation result ready to apply: narrative
// text, the facts it establishes, and an importance score for the memory
// store. Effects are merged into state as one step; a partially-returned
// result must never be turned into a Choice.
type Choice struct {
	Narrative  string         `json:"narrative"`
	Effects    map[string]any `json:"effects,omitempty"`
	Importance int            `json:"importance"`
}

// visit is the per-scene-visit bookkeeping. A fresh visit value is created
// on every scene load, so fulfillment state cannot leak between visits even
// when a scene is re-entered.
type visit struct {
	seq       int
	fulfilled map[string]bool
}

func newVisit(seq int) visit {
	return visit{seq: seq, fulfilled: make(map[string]bool)}
}

// Game sequences one session through a story. It is not safe for concurrent
// use: a session is processed strictly turn-sequentially by a single owner.
type Game struct {
	story   *story.Story
	session *state.Session
	visit   visit
	phase   Phase
	pending *Directive
	logger  *slog.Logger
}

// NewGame starts a session at the story's opening scene.
func NewGame(st *story.Story, logger *slog.Logger) (*Game, error) {
	if st == nil {
		return nil, fmt.Errorf("story is required")
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Game{
		story:   st,
		session: state.NewSession(st.Name, st.OpeningScene),
		visit:   newVisit(1),
		phase:   PhaseAwaitingDirective,
		logger:  logger,
	}, nil
}

// Story returns the story definition this game plays.
func (g *Game) Story() *story.Story { return g.story }

// Phase returns the current turn-cycle phase.
func (g *Game) Phase() Phase { return g.phase }

// Session returns a read-only snapshot of the session. The returned value
// shares nothing mutable with the live aggregate.
func (g *Game) Session() state.Session {
	snap := *g.session
	snap.Vars = g.session.Vars.Clone()
	snap.TurnHistory = append([]state.TurnRecord(nil), g.session.TurnHistory...)
	return snap
}

// Ending returns the ending the session reached, if any.
func (g *Game) Ending() (story.Ending, bool) {
	if !g.session.IsComplete || g.session.EndingID == "" {
		return story.Ending{}, false
	}
	e, ok := g.story.Endings[g.session.EndingID]
	return e, ok
}

// NextDirective selects the next unit of work, evaluated fresh each turn:
// the lowest-index blank whose key is still absent from state, else the
// first requirement not yet fulfilled this scene visit, else none. A scene
// with no outstanding work and no way to ever transition is an authoring
// error; the session is completed with no ending rather than left spinning.
func (g *Game) NextDirective() (Directive, error) {
	if g.session.IsComplete {
		return Directive{Type: DirectiveNone}, ErrSessionComplete
	}

	scene := g.story.Scenes[g.session.CurrentScene]

	for _, key := range scene.Blanks {
		if !g.session.Vars.Has(key) {
			d := Directive{
				Type:      DirectiveFillBlank,
				Key:       key,
				SceneID:   g.session.CurrentScene,
				SceneGoal: scene.Goal,
			}
			g.pending = &d
			g.phase = PhaseGenerating
			return d, nil
		}
	}

	for _, req := range scene.Requirements {
		if !g.visit.fulfilled[req.Key] {
			d := Directive{
				Type:        DirectiveRequirement,
				Key:         req.Key,
				Description: req.Description,
				SceneID:     g.session.CurrentScene,
				SceneGoal:   scene.Goal,
			}
			g.pending = &d
			g.phase = PhaseGenerating
			return d, nil
		}
	}

	if len(scene.Transitions) == 0 && scene.Default == "" {
		g.logger.Error("dead-end scene with no outstanding work",
			"scene", g.session.CurrentScene, "session", g.session.ID)
		g.completeWithoutEnding()
		return Directive{Type: DirectiveNone}, nil
	}

	g.pending = nil
	return Directive{
		Type:      DirectiveNone,
		SceneID:   g.session.CurrentScene,
		SceneGoal: scene.Goal,
	}, nil
}

// Apply merges a choice into the session as one atomic step and then runs
// the transition check exactly once. Explicit guards evaluate in declared
// order and the first true one wins regardless of requirement completion;
// the default transition fires only once every requirement of the visit is
// fulfilled.
func (g *Game) Apply(choice Choice) error {
	if g.session.IsComplete {
		return ErrSessionComplete
	}
	g.phase = PhaseApplying

	g.session.Vars.Merge(choice.Effects)

	scene := g.story.Scenes[g.session.CurrentScene]
	for _, req := range scene.Requirements {
		if !g.visit.fulfilled[req.Key] && hasKey(choice.Effects, req.Key) {
			g.visit.fulfilled[req.Key] = true
		}
	}

	record := state.TurnRecord{
		Narrative: choice.Narrative,
		Effects:   choice.Effects,
		Timestamp: time.Now().UTC(),
	}
	if g.pending != nil {
		record.Directive = string(g.pending.Type)
		record.Key = g.pending.Key
	}
	g.session.TurnHistory = append(g.session.TurnHistory, record)
	g.session.UpdatedAt = time.Now().UTC()
	g.pending = nil

	g.checkTransitions(scene)
	if !g.session.IsComplete && g.phase == PhaseApplying {
		g.phase = PhaseAwaitingDirective
	}
	return nil
}

// checkTransitions evaluates declared guards in order. A guard that fails to
// evaluate is treated as non-matching and logged, never fatal.
func (g *Game) checkTransitions(scene story.Scene) {
	for i, tr := range scene.Transitions {
		matched, err := cond.Evaluate(tr.When, g.session.Vars)
		if err != nil {
			g.logger.Warn("transition guard failed to evaluate",
				"scene", g.session.CurrentScene, "index", i, "guard", tr.When, "error", err)
			continue
		}
		if !matched {
			continue
		}
		if g.fireTransition(tr.Target) {
			return
		}
	}

	if scene.Default != "" && g.allRequirementsFulfilled(scene) {
		g.fireTransition(scene.Default)
	}
}

func (g *Game) allRequirementsFulfilled(scene story.Scene) bool {
	for _, req := range scene.Requirements {
		if !g.visit.fulfilled[req.Key] {
			return false
		}
	}
	return true
}

// fireTransition resolves a target id. It returns false when the target is
// a guarded ending whose own guard does not currently hold, in which case
// later transitions keep evaluating.
func (g *Game) fireTransition(target string) bool {
	if ending, ok := g.story.Endings[target]; ok {
		if ending.When != "" {
			matched, err := cond.Evaluate(ending.When, g.session.Vars)
			if err != nil {
				g.logger.Warn("ending guard failed to evaluate",
					"ending", target, "guard", ending.When, "error", err)
				return false
			}
			if !matched {
				return false
			}
		}
		g.session.EndingID = target
		g.session.IsComplete = true
		g.session.UpdatedAt = time.Now().UTC()
		g.phase = PhaseComplete
		g.logger.Info("session reached ending", "session", g.session.ID, "ending", target)
		return true
	}

	if g.story.HasScene(target) {
		g.loadScene(target)
		return true
	}

	// Unknown target: complete the session rather than loop forever.
	g.logger.Error("transition target matches neither scene nor ending",
		"scene", g.session.CurrentScene, "target", target, "session", g.session.ID)
	g.completeWithoutEnding()
	return true
}

// loadScene moves the session to a new scene, resetting per-visit
// fulfillment bookkeeping. Established facts persist across scenes.
func (g *Game) loadScene(target string) {
	g.phase = PhaseSceneLoading
	g.session.CurrentScene = target
	g.session.UpdatedAt = time.Now().UTC()
	g.visit = newVisit(g.visit.seq + 1)
	g.phase = PhaseAwaitingDirective
	g.logger.Debug("scene loaded", "session", g.session.ID, "scene", target, "visit", g.visit.seq)
}

func (g *Game) completeWithoutEnding() {
	g.session.IsComplete = true
	g.session.UpdatedAt = time.Now().UTC()
	g.phase = PhaseComplete
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
