package story

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/storyloom/storyloom/pkg/cond"
)

// Load reads and validates a story definition. JSON and YAML files are
// supported, selected by extension.
func Load(path string) (*Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}

	var s Story
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse story JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse story YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported story file extension %q", ext)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the story for authoring errors: missing opening scene,
// unresolvable transition targets, unparseable guards, and dead-end scenes
// that could never transition.
func (s *Story) Validate() error {
	var problems []string

	if s.Name == "" {
		problems = append(problems, "story name is required")
	}
	if len(s.Scenes) == 0 {
		problems = append(problems, "story has no scenes")
	}
	if s.OpeningScene == "" {
		problems = append(problems, "opening_scene is required")
	} else if !s.HasScene(s.OpeningScene) {
		problems = append(problems, fmt.Sprintf("opening_scene %q is not a scene", s.OpeningScene))
	}

	for id, scene := range s.Scenes {
		if s.HasEnding(id) {
			problems = append(problems, fmt.Sprintf("id %q names both a scene and an ending", id))
		}
		for i, tr := range scene.Transitions {
			if tr.When == "" {
				problems = append(problems, fmt.Sprintf("scene %q transition %d has no guard", id, i))
			} else if _, err := cond.Parse(tr.When); err != nil {
				problems = append(problems, fmt.Sprintf("scene %q transition %d guard: %v", id, i, err))
			}
			if !s.HasScene(tr.Target) && !s.HasEnding(tr.Target) {
				problems = append(problems, fmt.Sprintf("scene %q transition %d targets unknown id %q", id, i, tr.Target))
			}
		}
		if scene.Default != "" && !s.HasScene(scene.Default) && !s.HasEnding(scene.Default) {
			problems = append(problems, fmt.Sprintf("scene %q default targets unknown id %q", id, scene.Default))
		}
		if len(scene.Requirements) == 0 && len(scene.Transitions) == 0 && scene.Default == "" {
			problems = append(problems, fmt.Sprintf("scene %q is a dead end: no requirements, transitions or default", id))
		}
		seen := make(map[string]bool)
		for _, r := range scene.Requirements {
			if r.Key == "" {
				problems = append(problems, fmt.Sprintf("scene %q has a requirement with no key", id))
				continue
			}
			if seen[r.Key] {
				problems = append(problems, fmt.Sprintf("scene %q declares requirement %q twice", id, r.Key))
			}
			seen[r.Key] = true
		}
	}

	for id, ending := range s.Endings {
		if ending.When != "" {
			if _, err := cond.Parse(ending.When); err != nil {
				problems = append(problems, fmt.Sprintf("ending %q guard: %v", id, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid story: %s", strings.Join(problems, "; "))
	}
	return nil
}
