// Package memory keeps a bounded, importance-ranked history of narrative
// events. The store grows by appends and shrinks only through compaction: an
// external summarization call that replaces many low-value items with fewer,
// denser ones. Compaction is best-effort: a failed call leaves the store
// exactly as it was.
package memory

import (
	"context"
	"log/slog"
	"sync"
)

const (
	DefaultCompactionInterval  = 5
	DefaultHighWaterImportance = 9
)

// Item is one remembered event: free-text content, an importance score
// (0-10 by convention) and a creation-order sequence number.
type Item struct {
	Content    string `json:"content"`
	Importance int    `json:"importance"`
	Seq        int    `json:"seq"`
}

// Summarizer condenses a batch of items into a smaller set. Implementations
// call an external service; the store treats any error as "keep everything".
type Summarizer interface {
	Summarize(ctx context.Context, items []Item) ([]Item, error)
}

// Result is what a ranked read returns.
type Result struct {
	Memories   []string `json:"memories"`
	TotalCount int      `json:"total_count"`
}

// Stats describes the store's lifetime activity.
type Stats struct {
	Count              int `json:"count"`
	TotalAdded         int `json:"total_added"`
	Compactions        int `json:"compactions"`
	CompactionFailures int `json:"compaction_failures"`
	Interval           int `json:"interval"`
	HighWater          int `json:"high_water"`
}

// Option configures a Store at construction.
type Option func(*Store)

// WithCompactionInterval sets how many adds trigger a compaction attempt.
func WithCompactionInterval(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.interval = n
		}
	}
}

// WithHighWaterImportance sets the importance at or above which items are
// carried through compaction verbatim instead of being summarized away.
func WithHighWaterImportance(n int) Option {
	return func(s *Store) { s.highWater = n }
}

// WithLogger sets the logger used for compaction warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is an append-mostly memory store for a single session. Reads and
// writes are safe under concurrent access; the compaction swap is atomic
// with respect to readers, which at worst see the pre-compaction snapshot
// while the external call is pending.
type Store struct {
	mu         sync.RWMutex
	items      []Item
	nextSeq    int
	sinceComp  int
	compacting bool

	interval   int
	highWater  int
	summarizer Summarizer
	logger     *slog.Logger

	totalAdded  int
	compactions int
	failures    int
}

// NewStore creates a store. A nil summarizer disables compaction entirely.
func NewStore(summarizer Summarizer, opts ...Option) *Store {
	s := &Store{
		summarizer: summarizer,
		interval:   DefaultCompactionInterval,
		highWater:  DefaultHighWaterImportance,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends one memory. When the add count since the last compaction
// reaches the configured interval, a compaction attempt runs before Add
// returns; its failure is logged and counted but never surfaces as an error
// from the add path.
func (s *Store) Add(ctx context.Context, content string, importance int) {
	s.mu.Lock()
	s.items = append(s.items, Item{Content: content, Importance: importance, Seq: s.nextSeq})
	s.nextSeq++
	s.totalAdded++
	s.sinceComp++

	trigger := s.summarizer != nil && !s.compacting && s.sinceComp >= s.interval
	var snapshot []Item
	if trigger {
		// The counter resets on the attempt, not on success, so a failing
		// summarizer is retried every interval rather than every add.
		s.sinceComp = 0
		s.compacting = true
		snapshot = append([]Item(nil), s.items...)
	}
	s.mu.Unlock()

	if trigger {
		s.compact(ctx, snapshot)
	}
}

// compact runs the external summarization over the snapshot and atomically
// swaps in its result. Items at or above the high-water importance are
// excluded from summarization and re-inserted verbatim; items appended after
// the snapshot was taken survive the swap untouched.
func (s *Store) compact(ctx context.Context, snapshot []Item) {
	defer func() {
		s.mu.Lock()
		s.compacting = false
		s.mu.Unlock()
	}()

	var preserved, candidates []Item
	for _, item := range snapshot {
		if item.Importance >= s.highWater {
			preserved = append(preserved, item)
		} else {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 {
		return
	}

	summarized, err := s.summarizer.Summarize(ctx, candidates)
	if err != nil {
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()
		s.logger.Warn("memory compaction failed, retaining items", "items", len(candidates), "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) < len(snapshot) {
		// The store was restored from a save while the call was in flight;
		// the snapshot no longer describes it. Drop the result.
		return
	}
	tail := s.items[len(snapshot):]
	merged := make([]Item, 0, len(preserved)+len(summarized)+len(tail))
	merged = append(merged, preserved...)
	merged = append(merged, summarized...)
	merged = append(merged, tail...)
	for i := range merged {
		merged[i].Seq = i
	}
	s.items = merged
	s.nextSeq = len(merged)
	s.compactions++
	s.logger.Debug("memory compacted",
		"before", len(snapshot)+len(tail), "after", len(merged), "preserved", len(preserved))
}

// Get returns up to limit memories ranked by importance, ties broken by
// recency, as flat strings, along with the total item count. Token budgeting
// beyond the count is the caller's concern.
func (s *Store) Get(limit int) Result {
	s.mu.RLock()
	ranked := append([]Item(nil), s.items...)
	total := len(s.items)
	s.mu.RUnlock()

	sortRanked(ranked)
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	memories := make([]string, len(ranked))
	for i, item := range ranked {
		memories[i] = item.Content
	}
	return Result{Memories: memories, TotalCount: total}
}

// SetCompactionInterval changes the compaction trigger. Values below one are
// ignored.
func (s *Store) SetCompactionInterval(n int) {
	if n < 1 {
		return
	}
	s.mu.Lock()
	s.interval = n
	s.mu.Unlock()
}

// Stats returns a snapshot of store activity.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Count:              len(s.items),
		TotalAdded:         s.totalAdded,
		Compactions:        s.compactions,
		CompactionFailures: s.failures,
		Interval:           s.interval,
		HighWater:          s.highWater,
	}
}

// Items returns the raw items in insertion order, for persistence.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// Restore replaces the store's contents, used when loading a saved game.
func (s *Store) Restore(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Item(nil), items...)
	maxSeq := -1
	for _, item := range s.items {
		if item.Seq > maxSeq {
			maxSeq = item.Seq
		}
	}
	s.nextSeq = maxSeq + 1
	s.sinceComp = 0
}
