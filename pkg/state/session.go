package state

import (
	"time"

	"github.com/google/uuid"
)

// Session is the root aggregate for one playthrough. It is owned exclusively
// by the flow sequencer: created at game start, mutated at most once per
// turn, never partially updated. Once IsComplete is set, CurrentScene and
// Vars never change again.
type Session struct {
	ID           uuid.UUID    `json:"id"`
	StoryName    string       `json:"story_name"`
	CurrentScene string       `json:"current_scene"`
	Vars         State        `json:"vars"`
	TurnHistory  []TurnRecord `json:"turn_history"`
	IsComplete   bool         `json:"is_complete"`
	EndingID     string       `json:"ending_id,omitempty"` // empty on authoring-error completion
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewSession creates a session positioned at a story's opening scene.
func NewSession(storyName, openingScene string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.New(),
		StoryName:    storyName,
		CurrentScene: openingScene,
		Vars:         make(State),
		TurnHistory:  make([]TurnRecord, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// RecentTurns returns up to limit of the most recent turn records, oldest
// first, for inclusion in a generation context bundle.
func (s *Session) RecentTurns(limit int) []TurnRecord {
	if limit <= 0 || len(s.TurnHistory) <= limit {
		return s.TurnHistory
	}
	return s.TurnHistory[len(s.TurnHistory)-limit:]
}
