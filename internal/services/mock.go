package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/storyloom/storyloom/pkg/memory"
)

// MockGenerator is a Generator for tests. Behavior is overridable through
// GenerateFunc; calls are tracked for assertions.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req GenerationRequest) (*GenerationResult, error)

	mu            sync.Mutex
	GenerateCalls []GenerationRequest
}

var _ Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a mock generator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		GenerateCalls: make([]GenerationRequest, 0),
	}
}

// Generate records the call and delegates to GenerateFunc. The default
// behavior establishes the directive's key so turn loops make progress.
func (m *MockGenerator) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}

	result := &GenerationResult{
		Narrative:  fmt.Sprintf("Mock narrative for %s.", req.Directive.Type),
		Importance: 3,
	}
	if req.Directive.Key != "" {
		result.Effects = map[string]any{req.Directive.Key: "resolved"}
	}
	return result, nil
}

// CallCount returns how many generation calls were made.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateCalls)
}

// Reset clears call tracking.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = m.GenerateCalls[:0]
}

// MockSummarizer is a memory.Summarizer for tests.
type MockSummarizer struct {
	SummarizeFunc func(ctx context.Context, items []memory.Item) ([]memory.Item, error)

	mu             sync.Mutex
	SummarizeCalls [][]memory.Item
}

var _ memory.Summarizer = (*MockSummarizer)(nil)

// NewMockSummarizer creates a mock summarizer.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{
		SummarizeCalls: make([][]memory.Item, 0),
	}
}

// Summarize records the call and delegates to SummarizeFunc, defaulting to
// collapsing the batch into a single mid-importance entry.
func (m *MockSummarizer) Summarize(ctx context.Context, items []memory.Item) ([]memory.Item, error) {
	m.mu.Lock()
	m.SummarizeCalls = append(m.SummarizeCalls, items)
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, items)
	}
	return []memory.Item{{Content: fmt.Sprintf("Summary of %d events.", len(items)), Importance: 5}}, nil
}

// CallCount returns how many summarization calls were made.
func (m *MockSummarizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SummarizeCalls)
}
