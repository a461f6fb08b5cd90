package artifact

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore keeps artifacts in memory. Meant for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// PutObject retains the content and returns a memory:// URI.
func (s *MemoryStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read artifact content: %w", err)
	}
	s.mu.Lock()
	s.data[path] = append([]byte(nil), content...)
	s.mu.Unlock()
	return "memory://" + path, nil
}

// Get returns a stored artifact's content.
func (s *MemoryStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.data[path]
	return content, ok
}
