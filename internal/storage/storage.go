// Package storage persists playthroughs and loads story definitions. Saved
// games live in Redis keyed by session id; story files are read from a data
// directory on the filesystem.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom/internal/runner"
	"github.com/storyloom/storyloom/pkg/story"
)

// Storage is the unified interface for persistence and story loading.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Saved-game operations (Redis-backed). Load returns (nil, nil) when no
	// save exists for the id.
	SaveGame(ctx context.Context, id uuid.UUID, data *runner.SaveData) error
	LoadGame(ctx context.Context, id uuid.UUID) (*runner.SaveData, error)
	DeleteGame(ctx context.Context, id uuid.UUID) error

	// Story operations (filesystem-backed). ListStories maps story file
	// names to display names.
	ListStories(ctx context.Context) (map[string]string, error)
	GetStory(ctx context.Context, filename string) (*story.Story, error)
}
