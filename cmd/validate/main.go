// Command validate checks a story file for authoring errors beyond what the
// loader enforces: filename conventions, reachability and guard traps.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/storyloom/storyloom/pkg/story"
)

var filenamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <story.json|story.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	fmt.Printf("Validating %s...\n", filename)

	if err := checkFilename(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	s, err := story.Load(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	for _, warning := range lint(s) {
		fmt.Printf("warning: %s\n", warning)
	}

	fmt.Printf("Story %q is valid: %d scenes, %d endings.\n", s.Name, len(s.Scenes), len(s.Endings))
}

func checkFilename(filename string) error {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return fmt.Errorf("story file must have a .json, .yaml or .yml extension: %s", base)
	}
	name := strings.TrimSuffix(base, ext)
	if !filenamePattern.MatchString(name) {
		return fmt.Errorf("story filename %q must be lowercase snake_case (e.g. river_crossing.json)", base)
	}
	return nil
}

// lint reports authoring smells that are legal but probably unintended.
func lint(s *story.Story) []string {
	var warnings []string

	reachable := reachableIDs(s)
	for id := range s.Scenes {
		if !reachable[id] {
			warnings = append(warnings, fmt.Sprintf("scene %q is unreachable from the opening scene", id))
		}
	}
	for id := range s.Endings {
		if !reachable[id] {
			warnings = append(warnings, fmt.Sprintf("ending %q is unreachable from the opening scene", id))
		}
	}

	for _, id := range sortedSceneIDs(s) {
		scene := s.Scenes[id]
		for i, tr := range scene.Transitions {
			// An unconditional guard shadows everything declared after it.
			if tr.When == "always" && (i < len(scene.Transitions)-1 || scene.Default != "") {
				warnings = append(warnings, fmt.Sprintf("scene %q transition %d is always taken, later transitions and the default can never fire", id, i))
			}
		}
		if len(scene.Requirements) > 0 && scene.Default == "" && len(scene.Transitions) == 0 {
			warnings = append(warnings, fmt.Sprintf("scene %q has requirements but no way out once they are met", id))
		}
	}

	sort.Strings(warnings)
	return warnings
}

func reachableIDs(s *story.Story) map[string]bool {
	reachable := make(map[string]bool)
	queue := []string{s.OpeningScene}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reachable[id] {
			continue
		}
		reachable[id] = true

		scene, ok := s.Scenes[id]
		if !ok {
			continue
		}
		for _, tr := range scene.Transitions {
			queue = append(queue, tr.Target)
		}
		if scene.Default != "" {
			queue = append(queue, scene.Default)
		}
	}
	return reachable
}

func sortedSceneIDs(s *story.Story) []string {
	ids := make([]string, 0, len(s.Scenes))
	for id := range s.Scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
