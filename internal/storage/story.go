package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/storyloom/storyloom/pkg/story"
)

// Story operations (filesystem-backed)

func isStoryFile(path string) bool {
	switch filepath.Ext(path) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func (r *RedisStorage) ListStories(ctx context.Context) (map[string]string, error) {
	storiesDir := filepath.Join(r.dataDir, "stories")
	stories := make(map[string]string)

	err := filepath.WalkDir(storiesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isStoryFile(path) {
			return nil
		}

		s, err := story.Load(path)
		if err != nil {
			r.logger.Warn("Skipping unreadable story file", "path", path, "error", err)
			return nil
		}

		stories[filepath.Base(path)] = s.Name
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to walk stories directory", "error", err)
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	return stories, nil
}

func (r *RedisStorage) GetStory(ctx context.Context, filename string) (*story.Story, error) {
	path := filepath.Join(r.dataDir, "stories", filepath.Base(filename))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.logger.Error("Story file not found", "path", path)
		return nil, fmt.Errorf("story not found: %s", filename)
	}

	s, err := story.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load story %s: %w", filename, err)
	}
	return s, nil
}
