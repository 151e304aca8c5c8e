package api

import (
	"sync"

	"github.com/pccr10001/mbpd/internal/providers"
)

// Store holds the provider database currently served. Reload swaps it
// while lookups keep running against the previous one.
type Store struct {
	mu sync.RWMutex
	db *providers.Database
}

func NewStore(db *providers.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Get() *providers.Database {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Swap installs db and returns the database it replaced. The old database
// is left open since in-flight requests may still read from it.
func (s *Store) Swap(db *providers.Database) *providers.Database {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.db
	s.db = db
	return old
}
