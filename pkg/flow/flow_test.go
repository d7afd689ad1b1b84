package flow

import (
	"io"
	"log/slog"
	"testing"

	"github.com/storyloom/storyloom/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStory() *story.Story {
	return &story.Story{
		Name:         "The Vault",
		OpeningScene: "antechamber",
		Scenes: map[string]story.Scene{
			"antechamber": {
				Goal:   "Meet the keeper and learn why the vault is sealed.",
				Blanks: []string{"companion_name", "companion_motive"},
				Requirements: []story.Requirement{
					{Key: "keeper_met", Description: "The keeper introduces themselves."},
				},
				Transitions: []story.Transition{
					{When: "keeper_hostile == true", Target: "thrown_out"},
				},
				Default: "inner_door",
			},
			"inner_door": {
				Goal: "Open the inner door.",
				Requirements: []story.Requirement{
					{Key: "door_open", Description: "The inner door is opened, by force or wit."},
					{Key: "alarm_state", Description: "Whether the alarm was tripped is settled."},
				},
				Transitions: []story.Transition{
					{When: "alarm_state == 'tripped' && door_open == false", Target: "thrown_out"},
				},
				Default: "vault_heart",
			},
			"vault_heart": {
				Goal: "Decide what to do with what the vault holds.",
				Requirements: []story.Requirement{
					{Key: "verdict", Description: "A verdict on the vault's contents."},
				},
				Default: "quiet_ending",
			},
		},
		Endings: map[string]story.Ending{
			"thrown_out":   {Description: "Cast out of the vault."},
			"quiet_ending": {Description: "The vault keeps its secret.", When: "verdict == 'seal'"},
		},
	}
}

func mustGame(t *testing.T, st *story.Story) *Game {
	t.Helper()
	g, err := NewGame(st, testLogger())
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	return g
}

func TestDirectiveOrdering(t *testing.T) {
	g := mustGame(t, testStory())

	// First directive: lowest-index unfilled blank.
	d, err := g.NextDirective()
	if err != nil {
		t.Fatalf("NextDirective failed: %v", err)
	}
	if d.Type != DirectiveFillBlank || d.Key != "companion_name" {
		t.Fatalf("expected blank companion_name, got %s %s", d.Type, d.Key)
	}

	// An unrelated effect does not resolve the blank; it is asked again.
	if err := g.Apply(Choice{Narrative: "Small talk.", Effects: map[string]any{"weather": "rain"}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	d, _ = g.NextDirective()
	if d.Type != DirectiveFillBlank || d.Key != "companion_name" {
		t.Fatalf("expected blank companion_name again, got %s %s", d.Type, d.Key)
	}

	if err := g.Apply(Choice{Narrative: "You call her Wren.", Effects: map[string]any{"companion_name": "Wren"}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	d, _ = g.NextDirective()
	if d.Type != DirectiveFillBlank || d.Key != "companion_motive" {
		t.Fatalf("expected blank companion_motive, got %s %s", d.Type, d.Key)
	}

	if err := g.Apply(Choice{Narrative: "Wren wants the ledger.", Effects: map[string]any{"companion_motive": "ledger"}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	d, _ = g.NextDirective()
	if d.Type != DirectiveRequirement || d.Key != "keeper_met" {
		t.Fatalf("expected requirement keeper_met, got %s %s", d.Type, d.Key)
	}
	if d.Description == "" || d.SceneGoal == "" {
		t.Error("requirement directive should carry description and scene goal")
	}
}

func TestBlankResolvedByEarlierTurnEffect(t *testing.T) {
	// A blank is fulfilled exactly when its key appears in state, however it
	// got there: setting both blanks in one choice skips the second ask.
	g := mustGame(t, testStory())

	if _, err := g.NextDirective(); err != nil {
		t.Fatalf("NextDirective failed: %v", err)
	}
	err := g.Apply(Choice{Narrative: "Both at once.", Effects: map[string]any{
		"companion_name":   "Wren",
		"companion_motive": "ledger",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	d, _ := g.NextDirective()
	if d.Type != DirectiveRequirement || d.Key != "keeper_met" {
		t.Fatalf("expected requirement keeper_met, got %s %s", d.Type, d.Key)
	}
}

func TestDefaultTransitionRequiresAllRequirements(t *testing.T) {
	g := mustGame(t, testStory())
	fillAntechamberBlanks(t, g)

	// Fulfill the only requirement; default transition fires to inner_door.
	if err := g.Apply(Choice{Narrative: "The keeper bows.", Effects: map[string]any{"keeper_met": true}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := g.Session().CurrentScene; got != "inner_door" {
		t.Fatalf("expected scene inner_door, got %q", got)
	}

	// In inner_door, fulfilling one of two requirements is not enough.
	if err := g.Apply(Choice{Narrative: "The door creaks open.", Effects: map[string]any{"door_open": true}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := g.Session().CurrentScene; got != "inner_door" {
		t.Fatalf("default fired early, now in %q", got)
	}

	if err := g.Apply(Choice{Narrative: "No alarm sounds.", Effects: map[string]any{"alarm_state": "quiet"}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := g.Session().CurrentScene; got != "vault_heart" {
		t.Fatalf("expected scene vault_heart, got %q", got)
	}
}

func TestExplicitGuardPreemptsRequirements(t *testing.T) {
	g := mustGame(t, testStory())
	fillAntechamberBlanks(t, g)

	// keeper_met is still outstanding, but the explicit guard wins anyway.
	if err := g.Apply(Choice{Narrative: "You insult the keeper.", Effects: map[string]any{"keeper_hostile": true}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	sess := g.Session()
	if !sess.IsComplete {
		t.Fatal("expected session complete via guarded transition")
	}
	if sess.EndingID != "thrown_out" {
		t.Fatalf("expected ending thrown_out, got %q", sess.EndingID)
	}
}

func TestGuardedEndingGateHolds(t *testing.T) {
	g := mustGame(t, testStory())
	fillAntechamberBlanks(t, g)
	applyEffects(t, g, map[string]any{"keeper_met": true})
	applyEffects(t, g, map[string]any{"door_open": true, "alarm_state": "quiet"})

	// verdict fulfills the requirement, but the quiet_ending guard demands
	// verdict == 'seal'; with 'plunder' the default cannot fire.
	applyEffects(t, g, map[string]any{"verdict": "plunder"})
	sess := g.Session()
	if sess.IsComplete {
		t.Fatal("guarded ending should not fire with verdict = plunder")
	}
	if sess.CurrentScene != "vault_heart" {
		t.Fatalf("expected to stay in vault_heart, got %q", sess.CurrentScene)
	}

	// Changing the verdict lets the ending through.
	applyEffects(t, g, map[string]any{"verdict": "seal"})
	sess = g.Session()
	if !sess.IsComplete || sess.EndingID != "quiet_ending" {
		t.Fatalf("expected quiet_ending, got complete=%v ending=%q", sess.IsComplete, sess.EndingID)
	}
}

func TestCompletionIsMonotonic(t *testing.T) {
	g := mustGame(t, testStory())
	fillAntechamberBlanks(t, g)
	applyEffects(t, g, map[string]any{"keeper_hostile": true})

	sess := g.Session()
	if !sess.IsComplete {
		t.Fatal("expected complete session")
	}

	if err := g.Apply(Choice{Narrative: "too late", Effects: map[string]any{"keeper_hostile": false}}); err != ErrSessionComplete {
		t.Fatalf("expected ErrSessionComplete, got %v", err)
	}
	if _, err := g.NextDirective(); err != ErrSessionComplete {
		t.Fatalf("expected ErrSessionComplete, got %v", err)
	}

	after := g.Session()
	if after.CurrentScene != sess.CurrentScene {
		t.Error("current scene changed after completion")
	}
	if v, ok := after.Vars["keeper_hostile"]; !ok || v != true {
		t.Error("state changed after completion")
	}
}

func TestUnknownTransitionTarget(t *testing.T) {
	st := testStory()
	g := mustGame(t, st)

	// Corrupt the graph after validation, simulating a stale definition.
	scene := st.Scenes["antechamber"]
	scene.Transitions = []story.Transition{{When: "always", Target: "no_such_place"}}
	st.Scenes["antechamber"] = scene

	if err := g.Apply(Choice{Narrative: "step forward"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	sess := g.Session()
	if !sess.IsComplete {
		t.Fatal("expected session completed on unknown target")
	}
	if sess.EndingID != "" {
		t.Fatalf("expected no ending id, got %q", sess.EndingID)
	}
}

func TestMalformedGuardIsNonMatch(t *testing.T) {
	st := testStory()
	scene := st.Scenes["antechamber"]
	scene.Transitions = []story.Transition{
		{When: "keeper_met ==", Target: "thrown_out"}, // malformed, skipped
		{When: "panic == true", Target: "thrown_out"},
	}
	st.Scenes["antechamber"] = scene

	g, err := NewGame(&story.Story{
		Name:         st.Name,
		OpeningScene: st.OpeningScene,
		Scenes:       st.Scenes,
		Endings:      st.Endings,
	}, testLogger())
	if err == nil {
		// Validation catches the malformed guard at construction; force the
		// runtime path instead by corrupting after construction.
		t.Fatal("expected validation error for malformed guard")
	}

	g = mustGame(t, testStory())
	live := g.Story().Scenes["antechamber"]
	live.Transitions = []story.Transition{
		{When: "keeper_met ==", Target: "thrown_out"},
		{When: "panic == true", Target: "thrown_out"},
	}
	g.Story().Scenes["antechamber"] = live

	// Malformed guard must not crash or match; the later guard still runs.
	if err := g.Apply(Choice{Narrative: "panic!", Effects: map[string]any{"panic": true}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	sess := g.Session()
	if !sess.IsComplete || sess.EndingID != "thrown_out" {
		t.Fatalf("expected thrown_out via second guard, got complete=%v ending=%q", sess.IsComplete, sess.EndingID)
	}
}

func TestRequirementBookkeepingResetsPerVisit(t *testing.T) {
	st := &story.Story{
		Name:         "Loop",
		OpeningScene: "gate",
		Scenes: map[string]story.Scene{
			"gate": {
				Goal: "Pass the gate.",
				Requirements: []story.Requirement{
					{Key: "password", Description: "A password is attempted."},
				},
				Transitions: []story.Transition{
					{When: "password == 'mellon'", Target: "done"},
				},
				Default: "gate", // wrong password loops back for a fresh visit
			},
			"done": {
				Goal:    "Through.",
				Default: "out",
			},
		},
		Endings: map[string]story.Ending{
			"out": {Description: "Out the far side."},
		},
	}
	g := mustGame(t, st)

	applyEffects(t, g, map[string]any{"password": "friend"})
	if got := g.Session().CurrentScene; got != "gate" {
		t.Fatalf("expected to loop back to gate, got %q", got)
	}

	// After the self-transition the requirement must be outstanding again.
	d, err := g.NextDirective()
	if err != nil {
		t.Fatalf("NextDirective failed: %v", err)
	}
	if d.Type != DirectiveRequirement || d.Key != "password" {
		t.Fatalf("expected password requirement after revisit, got %s %s", d.Type, d.Key)
	}

	applyEffects(t, g, map[string]any{"password": "mellon"})
	if got := g.Session().CurrentScene; got != "done" {
		t.Fatalf("expected done, got %q", got)
	}
}

func TestFactsPersistAcrossScenes(t *testing.T) {
	g := mustGame(t, testStory())
	fillAntechamberBlanks(t, g)
	applyEffects(t, g, map[string]any{"keeper_met": true})

	sess := g.Session()
	if sess.CurrentScene != "inner_door" {
		t.Fatalf("expected inner_door, got %q", sess.CurrentScene)
	}
	if v, ok := sess.Vars["companion_name"]; !ok || v != "Wren" {
		t.Error("companion_name should persist into the new scene")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := mustGame(t, testStory())
	fillAntechamberBlanks(t, g)
	applyEffects(t, g, map[string]any{"keeper_met": true})
	applyEffects(t, g, map[string]any{"door_open": true}) // one of two fulfilled

	snap := g.Save()
	restored, err := Restore(g.Story(), snap, testLogger())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	orig := g.Session()
	got := restored.Session()
	if got.CurrentScene != orig.CurrentScene {
		t.Errorf("scene mismatch: %q vs %q", got.CurrentScene, orig.CurrentScene)
	}
	if len(got.Vars) != len(orig.Vars) {
		t.Errorf("vars length mismatch: %d vs %d", len(got.Vars), len(orig.Vars))
	}
	for k, v := range orig.Vars {
		if got.Vars[k] != v {
			t.Errorf("var %q mismatch: %v vs %v", k, got.Vars[k], v)
		}
	}
	if len(got.TurnHistory) != len(orig.TurnHistory) {
		t.Errorf("history length mismatch: %d vs %d", len(got.TurnHistory), len(orig.TurnHistory))
	}

	// The restored game must remember door_open was fulfilled this visit:
	// the next directive is alarm_state, not door_open.
	d, err := restored.NextDirective()
	if err != nil {
		t.Fatalf("NextDirective failed: %v", err)
	}
	if d.Type != DirectiveRequirement || d.Key != "alarm_state" {
		t.Fatalf("expected alarm_state after restore, got %s %s", d.Type, d.Key)
	}
}

func TestDeadEndSceneCompletesWithoutEnding(t *testing.T) {
	st := testStory()
	g := mustGame(t, st)

	// Strip the scene's outgoing edges after construction.
	scene := st.Scenes["antechamber"]
	scene.Blanks = nil
	scene.Requirements = nil
	scene.Transitions = nil
	scene.Default = ""
	st.Scenes["antechamber"] = scene

	d, err := g.NextDirective()
	if err != nil {
		t.Fatalf("NextDirective failed: %v", err)
	}
	if d.Type != DirectiveNone {
		t.Fatalf("expected none directive, got %s", d.Type)
	}
	sess := g.Session()
	if !sess.IsComplete || sess.EndingID != "" {
		t.Fatalf("expected completion without ending, got complete=%v ending=%q", sess.IsComplete, sess.EndingID)
	}
}

// fillAntechamberBlanks applies two turns resolving the opening scene's
// blanks in order.
func fillAntechamberBlanks(t *testing.T, g *Game) {
	t.Helper()
	applyEffects(t, g, map[string]any{"companion_name": "Wren"})
	applyEffects(t, g, map[string]any{"companion_motive": "ledger"})
}

func applyEffects(t *testing.T, g *Game, effects map[string]any) {
	t.Helper()
	if _, err := g.NextDirective(); err != nil {
		t.Fatalf("NextDirective failed: %v", err)
	}
	if err := g.Apply(Choice{Narrative: "…", Effects: effects}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
}
