package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/runner"
	"github.com/storyloom/storyloom/internal/services"
	"github.com/storyloom/storyloom/pkg/flow"
	"github.com/storyloom/storyloom/pkg/memory"
	"github.com/storyloom/storyloom/pkg/story"
)

const stepTimeout = 3 * time.Minute

// storyEntry is one selectable story in the picker.
type storyEntry struct {
	File string
	Name string
	Path string
}

// listLocalStories scans the stories directory without going through the
// server, so the console can run fully offline against local files.
func listLocalStories(dataDir string) ([]storyEntry, error) {
	storiesDir := filepath.Join(dataDir, "stories")
	var entries []storyEntry

	err := filepath.WalkDir(storiesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".json", ".yaml", ".yml":
		default:
			return nil
		}

		s, err := story.Load(path)
		if err != nil {
			return nil
		}
		entries = append(entries, storyEntry{File: filepath.Base(path), Name: s.Name, Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stories directory %s: %w", storiesDir, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no story files found under %s", storiesDir)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

type llmProvider interface {
	services.Generator
	memory.Summarizer
}

func newProvider(cfg *config.Config, log *slog.Logger) (llmProvider, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.ModelName, log), nil
	case "mock":
		// Offline mode for trying out story files without an API key.
		return &mockProvider{gen: services.NewMockGenerator(), summ: services.NewMockSummarizer()}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: anthropic, openai, mock)", cfg.LLMProvider)
	}
}

type mockProvider struct {
	gen  *services.MockGenerator
	summ *services.MockSummarizer
}

func (p *mockProvider) Generate(ctx context.Context, req services.GenerationRequest) (*services.GenerationResult, error) {
	return p.gen.Generate(ctx, req)
}

func (p *mockProvider) Summarize(ctx context.Context, items []memory.Item) ([]memory.Item, error) {
	return p.summ.Summarize(ctx, items)
}

// localSession owns the runner for one console playthrough.
type localSession struct {
	runner *runner.Runner
	entry  storyEntry
}

func startSession(cfg *config.Config, provider llmProvider, entry storyEntry, log *slog.Logger) (*localSession, error) {
	s, err := story.Load(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}

	game, err := flow.NewGame(s, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start story: %w", err)
	}

	mem := memory.NewStore(provider,
		memory.WithCompactionInterval(cfg.CompactionInterval),
		memory.WithHighWaterImportance(cfg.HighWaterImportance),
		memory.WithLogger(log))

	rn, err := runner.New(game, mem, provider, log)
	if err != nil {
		return nil, err
	}
	return &localSession{runner: rn, entry: entry}, nil
}

func (s *localSession) step(input string) (*runner.StepResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	return s.runner.Step(ctx, input)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
