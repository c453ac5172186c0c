// Package memory stores chunk payloads in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/catalog-harvester/internal/crawler"
)

// ChunkStore keeps chunk payloads in a map.
type ChunkStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	puts int
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{data: make(map[string][]byte)}
}

// Get returns a copy of the payload stored under name.
func (s *ChunkStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", crawler.ErrChunkNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data under name.
func (s *ChunkStore) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
	s.puts++
	return nil
}

// List returns every stored name, sorted.
func (s *ChunkStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Puts reports how many writes the store has accepted.
func (s *ChunkStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
