package ml

import (
	"fmt"
	"sync"
)

// Store hands out the process-wide model handle. The artifact is
// deserialized at most once; every later Get returns the same instance
// (or the same load error) without touching storage. The artifact is
// treated as immutable for the life of the process, so there is no TTL
// and no reload path.
type Store struct {
	path   string
	once   sync.Once
	forest *Forest
	err    error
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get returns the cached model, loading it on first call. Concurrent
// first calls block on the same load instead of racing to deserialize.
func (s *Store) Get() (RegressionModel, error) {
	s.once.Do(func() {
		s.forest, s.err = LoadForest(s.path)
	})
	if s.err != nil {
		return nil, s.err
	}
	return s.forest, nil
}

// Forest returns the concrete loaded forest for callers that need
// artifact metadata beyond the RegressionModel surface.
func (s *Store) Forest() (*Forest, error) {
	if _, err := s.Get(); err != nil {
		return nil, err
	}
	return s.forest, nil
}

func (s *Store) Path() string { return s.path }

// Preload forces the one-time load up front, so a missing or corrupt
// artifact surfaces at startup rather than on the first request.
func (s *Store) Preload() error {
	if _, err := s.Get(); err != nil {
		return fmt.Errorf("preload model: %w", err)
	}
	return nil
}
