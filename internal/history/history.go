// Package history persists a row per completed scrape run so operators can
// track catalog size and run health over time.
package history

import (
	"context"
	"sync"
	"time"
)

// Run is one completed scrape run.
type Run struct {
	RunID       string
	Channel     string
	Outcome     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Products    int
	ArtifactURI string
}

// Store records completed runs.
type Store interface {
	RecordRun(ctx context.Context, run Run) error
	Close()
}

// MemoryStore keeps run rows in memory. Meant for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []Run
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// RecordRun appends the run.
func (s *MemoryStore) RecordRun(_ context.Context, run Run) error {
	s.mu.Lock()
	s.runs = append(s.runs, run)
	s.mu.Unlock()
	return nil
}

// Runs returns a copy of all recorded runs.
func (s *MemoryStore) Runs() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, len(s.runs))
	copy(out, s.runs)
	return out
}

// Close is a no-op.
func (s *MemoryStore) Close() {}
