package story

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validStory() Story {
	return Story{
		Name:         "Test Story",
		OpeningScene: "start",
		Scenes: map[string]Scene{
			"start": {
				Goal:   "Begin the journey.",
				Blanks: []string{"companion_name"},
				Requirements: []Requirement{
					{Key: "supplies_packed", Description: "Provisions for the road."},
				},
				Transitions: []Transition{
					{When: "weather == 'storm'", Target: "shelter"},
				},
				Default: "shelter",
			},
			"shelter": {
				Goal:    "Wait out the night.",
				Default: "home",
			},
		},
		Endings: map[string]Ending{
			"home": {Description: "You make it back."},
		},
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeTemp(t, "test.json", `{
		"name": "Minimal",
		"opening_scene": "only",
		"scenes": {
			"only": {"goal": "Do the thing.", "default": "done"}
		},
		"endings": {
			"done": {"description": "Did the thing."}
		}
	}`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Name != "Minimal" {
		t.Errorf("expected name Minimal, got %q", s.Name)
	}
	if !s.HasScene("only") || !s.HasEnding("done") {
		t.Error("expected scene 'only' and ending 'done'")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeTemp(t, "test.yaml", `
name: Minimal
opening_scene: only
scenes:
  only:
    goal: Do the thing.
    blanks:
      - hero_name
    requirements:
      - key: thing_done
        description: The thing is done.
    transitions:
      - when: mood == 'dark'
        target: grim
    default: done
endings:
  done:
    description: Did the thing.
  grim:
    description: Did the thing, grimly.
    when: thing_done == 'badly'
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	scene := s.Scenes["only"]
	if len(scene.Blanks) != 1 || scene.Blanks[0] != "hero_name" {
		t.Errorf("unexpected blanks: %v", scene.Blanks)
	}
	if len(scene.Requirements) != 1 || scene.Requirements[0].Key != "thing_done" {
		t.Errorf("unexpected requirements: %v", scene.Requirements)
	}
	if len(scene.Transitions) != 1 || scene.Transitions[0].Target != "grim" {
		t.Errorf("unexpected transitions: %v", scene.Transitions)
	}
	if s.Endings["grim"].When != "thing_done == 'badly'" {
		t.Errorf("unexpected ending guard: %q", s.Endings["grim"].When)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "test.txt", "not a story")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeTemp(t, "bad.json", `{"name": `)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Story)
		problem string
	}{
		{
			name:   "valid story",
			mutate: func(s *Story) {},
		},
		{
			name:    "missing name",
			mutate:  func(s *Story) { s.Name = "" },
			problem: "story name is required",
		},
		{
			name:    "missing opening scene",
			mutate:  func(s *Story) { s.OpeningScene = "" },
			problem: "opening_scene is required",
		},
		{
			name:    "opening scene does not exist",
			mutate:  func(s *Story) { s.OpeningScene = "elsewhere" },
			problem: `opening_scene "elsewhere" is not a scene`,
		},
		{
			name: "transition guard does not parse",
			mutate: func(s *Story) {
				sc := s.Scenes["start"]
				sc.Transitions = []Transition{{When: "a &&", Target: "shelter"}}
				s.Scenes["start"] = sc
			},
			problem: `transition 0 guard`,
		},
		{
			name: "transition with empty guard",
			mutate: func(s *Story) {
				sc := s.Scenes["start"]
				sc.Transitions = []Transition{{When: "", Target: "shelter"}}
				s.Scenes["start"] = sc
			},
			problem: "has no guard",
		},
		{
			name: "transition targets unknown id",
			mutate: func(s *Story) {
				sc := s.Scenes["start"]
				sc.Transitions = []Transition{{When: "always", Target: "nowhere"}}
				s.Scenes["start"] = sc
			},
			problem: `targets unknown id "nowhere"`,
		},
		{
			name: "default targets unknown id",
			mutate: func(s *Story) {
				sc := s.Scenes["shelter"]
				sc.Default = "nowhere"
				s.Scenes["shelter"] = sc
			},
			problem: `default targets unknown id "nowhere"`,
		},
		{
			name: "dead end scene",
			mutate: func(s *Story) {
				s.Scenes["island"] = Scene{Goal: "No way off."}
			},
			problem: `scene "island" is a dead end`,
		},
		{
			name: "duplicate requirement key",
			mutate: func(s *Story) {
				sc := s.Scenes["start"]
				sc.Requirements = append(sc.Requirements, Requirement{Key: "supplies_packed"})
				s.Scenes["start"] = sc
			},
			problem: `declares requirement "supplies_packed" twice`,
		},
		{
			name: "requirement with no key",
			mutate: func(s *Story) {
				sc := s.Scenes["start"]
				sc.Requirements = append(sc.Requirements, Requirement{Description: "keyless"})
				s.Scenes["start"] = sc
			},
			problem: "requirement with no key",
		},
		{
			name: "scene and ending share an id",
			mutate: func(s *Story) {
				s.Endings["shelter"] = Ending{Description: "Also an ending."}
			},
			problem: `names both a scene and an ending`,
		},
		{
			name: "ending guard does not parse",
			mutate: func(s *Story) {
				s.Endings["home"] = Ending{Description: "Back.", When: "== broken"}
			},
			problem: `ending "home" guard`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStory()
			tt.mutate(&s)
			err := s.Validate()
			if tt.problem == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.problem)
			}
			if !strings.Contains(err.Error(), tt.problem) {
				t.Errorf("Validate() error %q does not mention %q", err.Error(), tt.problem)
			}
		})
	}
}
