// Package state holds the mutable facts of a running story session: the
// key/value snapshot established so far and the session aggregate that owns
// it.
package state

import (
	"sort"
	"time"
)

// State is a flat mapping from fact keys to scalar values (number, string or
// boolean). There is no nesting. Absence of a key is meaningful and distinct
// from any value; the only way a key enters the map is through a choice's
// declared effects.
type State map[string]any

// Var implements cond.Lookup.
func (s State) Var(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

// Has reports whether a key has been established.
func (s State) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Merge applies a set of effects in one step. Later writes to the same key
// within one merge follow map semantics (the effects map already collapsed
// them). Merging never removes a key.
func (s State) Merge(effects map[string]any) {
	for k, v := range effects {
		s[k] = v
	}
}

// Clone returns an independent copy of the snapshot.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the established keys in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TurnRecord is one completed turn: what was asked for, what the generator
// narrated, and what facts it established.
type TurnRecord struct {
	Directive string         `json:"directive"`           // directive kind, e.g. "blank" or "requirement"
	Key       string         `json:"key,omitempty"`       // blank or requirement key the turn targeted
	Narrative string         `json:"narrative"`           // generated narrative text
	Effects   map[string]any `json:"effects,omitempty"`   // state effects applied this turn
	Timestamp time.Time      `json:"timestamp,omitempty"` // when the turn was applied
}
