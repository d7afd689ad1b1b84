// Package story defines the authored scene graph a session plays through:
// scenes with blanks, requirements and guarded transitions, plus the endings
// they can terminate in.
package story

// Requirement is a fact the generator is steered to establish before a scene
// may end. Fulfillment is the existence of a decision on the key, not any
// particular value.
type Requirement struct {
	Key         string `json:"key" yaml:"key"`
	Description string `json:"description" yaml:"description"`
}

// Transition is a guarded edge out of a scene. When evaluates against the
// session state; Target names a scene or an ending.
type Transition struct {
	When   string `json:"when" yaml:"when"`
	Target string `json:"target" yaml:"target"`
}

// Scene is a single narrative unit. Blanks are keys the player must
// establish before requirement-driven generation resumes; both are declared
// in order and served in order. Default, if set, is the implicit transition
// taken once every requirement has been fulfilled this visit and no explicit
// guard has fired.
type Scene struct {
	Goal         string        `json:"goal" yaml:"goal"`
	Blanks       []string      `json:"blanks,omitempty" yaml:"blanks,omitempty"`
	Requirements []Requirement `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Transitions  []Transition  `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	Default      string        `json:"default,omitempty" yaml:"default,omitempty"`
}

// Ending terminates a session. When, if set, is an additional gate: a
// transition targeting the ending only fires while the guard holds.
type Ending struct {
	Description string `json:"description" yaml:"description"`
	When        string `json:"when,omitempty" yaml:"when,omitempty"`
}

// Story is the template for a playthrough.
type Story struct {
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	OpeningScene string            `json:"opening_scene" yaml:"opening_scene"`
	Scenes       map[string]Scene  `json:"scenes" yaml:"scenes"`
	Endings      map[string]Ending `json:"endings,omitempty" yaml:"endings,omitempty"`
}

// HasScene reports whether id names a scene.
func (s *Story) HasScene(id string) bool {
	_, ok := s.Scenes[id]
	return ok
}

// HasEnding reports whether id names an ending.
func (s *Story) HasEnding(id string) bool {
	_, ok := s.Endings[id]
	return ok
}
