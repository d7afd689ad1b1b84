package flow

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/storyloom/storyloom/pkg/state"
	"github.com/storyloom/storyloom/pkg/story"
)

// Snapshot is the serializable form of a game. Restoring a snapshot against
// the same story yields an equivalent session: same scene, same state, same
// history, same per-visit fulfillment.
type Snapshot struct {
	Session   *state.Session `json:"session"`
	VisitSeq  int            `json:"visit_seq"`
	Fulfilled []string       `json:"fulfilled,omitempty"` // requirement keys fulfilled this visit
}

// Save captures the game for persistence.
func (g *Game) Save() Snapshot {
	snap := g.Session()
	fulfilled := make([]string, 0, len(g.visit.fulfilled))
	for key := range g.visit.fulfilled {
		fulfilled = append(fulfilled, key)
	}
	sort.Strings(fulfilled)
	return Snapshot{
		Session:   &snap,
		VisitSeq:  g.visit.seq,
		Fulfilled: fulfilled,
	}
}

// Restore rebuilds a game from a snapshot taken against the same story.
func Restore(st *story.Story, snap Snapshot, logger *slog.Logger) (*Game, error) {
	if st == nil {
		return nil, fmt.Errorf("story is required")
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if snap.Session == nil {
		return nil, fmt.Errorf("snapshot has no session")
	}
	if !snap.Session.IsComplete && !st.HasScene(snap.Session.CurrentScene) {
		return nil, fmt.Errorf("snapshot scene %q is not in story %q", snap.Session.CurrentScene, st.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}

	sess := *snap.Session
	if sess.Vars == nil {
		sess.Vars = make(state.State)
	}
	if sess.TurnHistory == nil {
		sess.TurnHistory = make([]state.TurnRecord, 0)
	}

	seq := snap.VisitSeq
	if seq < 1 {
		seq = 1
	}
	v := newVisit(seq)
	for _, key := range snap.Fulfilled {
		v.fulfilled[key] = true
	}

	phase := PhaseAwaitingDirective
	if sess.IsComplete {
		phase = PhaseComplete
	}

	return &Game{
		story:   st,
		session: &sess,
		visit:   v,
		phase:   phase,
		logger:  logger,
	}, nil
}
