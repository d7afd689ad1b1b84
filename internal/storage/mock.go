package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom/internal/runner"
	"github.com/storyloom/storyloom/pkg/story"
)

// MockStorage is an in-memory Storage for tests. Saved games round-trip
// through JSON so tests exercise the same serialization as Redis.
type MockStorage struct {
	mu      sync.RWMutex
	saves   map[uuid.UUID][]byte
	stories map[string]*story.Story

	PingErr error
}

var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates an empty mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		saves:   make(map[uuid.UUID][]byte),
		stories: make(map[string]*story.Story),
	}
}

// AddStory registers a story under a filename.
func (m *MockStorage) AddStory(filename string, s *story.Story) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[filename] = s
}

func (m *MockStorage) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveGame(ctx context.Context, id uuid.UUID, data *runner.SaveData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal save data: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[id] = blob
	return nil
}

func (m *MockStorage) LoadGame(ctx context.Context, id uuid.UUID) (*runner.SaveData, error) {
	m.mu.RLock()
	blob, ok := m.saves[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var data runner.SaveData
	if err := json.Unmarshal(blob, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal save data: %w", err)
	}
	return &data, nil
}

func (m *MockStorage) DeleteGame(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saves, id)
	return nil
}

func (m *MockStorage) ListStories(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.stories))
	for filename, s := range m.stories {
		out[filename] = s.Name
	}
	return out, nil
}

func (m *MockStorage) GetStory(ctx context.Context, filename string) (*story.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stories[filename]
	if !ok {
		return nil, fmt.Errorf("story not found: %s", filename)
	}
	return s, nil
}
