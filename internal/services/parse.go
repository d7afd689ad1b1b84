package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storyloom/storyloom/pkg/memory"
)

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one, and trims to the outermost JSON value.
func stripFences(text string, open, closing byte) (string, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.IndexByte(trimmed, open)
	end := strings.LastIndexByte(trimmed, closing)
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON payload found in response")
	}
	return trimmed[start : end+1], nil
}

// parseGenerationResult decodes and validates a model response. Malformed
// output is a generation error: the turn fails and nothing is applied.
func parseGenerationResult(text string) (*GenerationResult, error) {
	payload, err := stripFences(text, '{', '}')
	if err != nil {
		return nil, fmt.Errorf("malformed generation response: %w", err)
	}

	var result GenerationResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation response: %w", err)
	}
	return &result, nil
}

// parseSummaryItems decodes a summarization response into memory items.
func parseSummaryItems(text string, inputCount int) ([]memory.Item, error) {
	payload, err := stripFences(text, '[', ']')
	if err != nil {
		return nil, fmt.Errorf("malformed summarization response: %w", err)
	}

	var items []memory.Item
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("failed to decode summarization response: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("summarization returned no items")
	}
	if len(items) > inputCount {
		return nil, fmt.Errorf("summarization grew the memory set (%d from %d)", len(items), inputCount)
	}
	for i := range items {
		if items[i].Content == "" {
			return nil, fmt.Errorf("summarization item %d has no content", i)
		}
		if items[i].Importance < 0 {
			items[i].Importance = 0
		}
		if items[i].Importance > 10 {
			items[i].Importance = 10
		}
	}
	return items, nil
}
