package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vigil-go/internal/domain"
)

// SuppressionStore is an in-memory implementation of store.SuppressionStore.
type SuppressionStore struct {
	mu      sync.RWMutex
	windows map[string]*domain.Suppression
}

// NewSuppressionStore creates a new in-memory suppression store.
func NewSuppressionStore() *SuppressionStore {
	return &SuppressionStore{
		windows: make(map[string]*domain.Suppression),
	}
}

// Create stores a suppression window.
func (s *SuppressionStore) Create(ctx context.Context, suppression *domain.Suppression) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *suppression
	s.windows[suppression.ID] = &copied
	return nil
}

// Delete removes a suppression window by id.
func (s *SuppressionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[id]; !ok {
		return domain.ErrSuppressionNotFound
	}
	delete(s.windows, id)
	return nil
}

// Get retrieves a suppression window by id.
func (s *SuppressionStore) Get(ctx context.Context, id string) (*domain.Suppression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window, ok := s.windows[id]
	if !ok {
		return nil, domain.ErrSuppressionNotFound
	}
	copied := *window
	return &copied, nil
}

// List returns all windows still relevant at the given time, lazily dropping
// the ones that already ended.
func (s *SuppressionStore) List(ctx context.Context, at time.Time) ([]*domain.Suppression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []*domain.Suppression
	for id, window := range s.windows {
		if !window.EndTime.After(at) {
			delete(s.windows, id)
			continue
		}
		copied := *window
		results = append(results, &copied)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartTime.Before(results[j].StartTime)
	})
	return results, nil
}

// Active reports whether the alert falls inside any window at the given time.
// The most specific matching window governs; for a boolean answer any match
// suppresses.
func (s *SuppressionStore) Active(ctx context.Context, alert *domain.Alert, at time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := 0
	for _, window := range s.windows {
		if window.Matches(alert, at) && window.Priority() > best {
			best = window.Priority()
		}
	}
	return best > 0, nil
}
