package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storyloom/storyloom/pkg/flow"
	"github.com/storyloom/storyloom/pkg/memory"
)

const generationInstructions = `You are the narrator of an interactive story. Respond with a single JSON object and nothing else:
{"narrative": "...", "effects": {"key": value, ...}, "importance": 0-10}

Rules:
- "narrative" is the next passage of the story, in second person.
- "effects" records only facts this passage establishes, as flat scalar values (string, number or boolean). Never nest objects or arrays.
- "importance" scores how much this passage matters to the story so far (0 = color, 10 = pivotal).
- Stay within the scene goal. Do not end the story yourself.`

const summarizationInstructions = `You compress story memories. Given a numbered list of memory entries, respond with a single JSON array and nothing else:
[{"content": "...", "importance": 0-10}, ...]

Produce fewer entries than you were given. Merge related events, keep concrete names and facts, and score each entry's importance to the ongoing story.`

// buildGenerationPrompt renders the context bundle for a directive into a
// (system, user) message pair shared by all providers.
func buildGenerationPrompt(req GenerationRequest) (string, string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Story: %s\n", req.StoryName)
	fmt.Fprintf(&b, "Scene goal: %s\n\n", req.Directive.SceneGoal)

	switch req.Directive.Type {
	case flow.DirectiveFillBlank:
		fmt.Fprintf(&b, "This turn must lead the player to establish %q through their choice.\n", req.Directive.Key)
	case flow.DirectiveRequirement:
		fmt.Fprintf(&b, "This turn must resolve: %s (record the outcome under %q).\n",
			req.Directive.Description, req.Directive.Key)
	default:
		b.WriteString("Narrate a connecting beat; establish no new facts.\n")
	}

	if len(req.Vars) > 0 {
		vars, _ := json.Marshal(req.Vars)
		fmt.Fprintf(&b, "\nEstablished facts: %s\n", vars)
	}
	if len(req.Memories) > 0 {
		b.WriteString("\nKey memories:\n")
		for _, m := range req.Memories {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	if len(req.RecentTurns) > 0 {
		b.WriteString("\nRecent turns:\n")
		for _, turn := range req.RecentTurns {
			fmt.Fprintf(&b, "- %s\n", turn.Narrative)
		}
	}
	if req.PlayerInput != "" {
		fmt.Fprintf(&b, "\nThe player says: %s\n", req.PlayerInput)
	}

	return generationInstructions, b.String()
}

// buildSummarizationPrompt renders memory items for compaction.
func buildSummarizationPrompt(items []memory.Item) (string, string) {
	var b strings.Builder
	b.WriteString("Memory entries:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. [importance %d] %s\n", i+1, item.Importance, item.Content)
	}
	return summarizationInstructions, b.String()
}
