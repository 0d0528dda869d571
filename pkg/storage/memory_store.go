package storage

import (
	"sort"
	"sync"
)

// MemoryStore implements VisitedStore with a mutex-guarded map
type MemoryStore struct {
	mu      sync.Mutex
	visited map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{visited: make(map[string]struct{})}
}

// TryMarkVisited implements the VisitedStore interface
func (s *MemoryStore) TryMarkVisited(rawURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[rawURL]; ok {
		return false, nil
	}
	s.visited[rawURL] = struct{}{}
	return true, nil
}

// VisitedCount implements the VisitedStore interface
func (s *MemoryStore) VisitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}

// VisitedURLs implements the VisitedStore interface
func (s *MemoryStore) VisitedURLs() ([]string, error) {
	s.mu.Lock()
	urls := make([]string, 0, len(s.visited))
	for u := range s.visited {
		urls = append(urls, u)
	}
	s.mu.Unlock()
	sort.Strings(urls)
	return urls, nil
}

// WriteVisitedLog implements the VisitedStore interface
func (s *MemoryStore) WriteVisitedLog(filePath string) error {
	urls, _ := s.VisitedURLs()
	return writeLines(filePath, urls)
}

// Close implements the VisitedStore interface
func (s *MemoryStore) Close() error { return nil }
