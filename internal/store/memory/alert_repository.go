// Package memory provides in-memory implementations of the store interfaces.
// They are used in memory storage mode and by the test suites.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"vigil-go/internal/domain"
	"vigil-go/internal/store"
)

// AlertRepository is an in-memory implementation of store.AlertRepository.
// A single mutex serializes writes, which gives the same linearizable
// per-key semantics the SQL backend gets from conditional updates.
type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]*domain.Alert
}

// NewAlertRepository creates a new in-memory alert repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		alerts: make(map[string]*domain.Alert),
	}
}

// FindDuplicate returns the alert with the exact matching key, or nil.
func (r *AlertRepository) FindDuplicate(ctx context.Context, incoming *domain.Alert) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, alert := range r.alerts {
		if alert.IsDuplicateOf(incoming) {
			return alert.Clone(), nil
		}
	}
	return nil, nil
}

// FindCorrelated returns the alert correlated to the incoming event, or nil.
func (r *AlertRepository) FindCorrelated(ctx context.Context, incoming *domain.Alert) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, alert := range r.alerts {
		if alert.IsCorrelatedTo(incoming) {
			return alert.Clone(), nil
		}
	}
	return nil, nil
}

// Create inserts a new alert. A concurrent writer that already created an
// alert in the same correlation scope causes ErrConflict.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Uniqueness constraint on the correlation scope.
	for _, existing := range r.alerts {
		if existing.IsDuplicateOf(alert) || existing.IsCorrelatedTo(alert) {
			return nil, store.ErrConflict
		}
	}

	r.alerts[alert.ID] = alert.Clone()
	return alert.Clone(), nil
}

// Update replaces prior with updated, conditional on the stored UpdateTime
// still matching prior's.
func (r *AlertRepository) Update(ctx context.Context, prior, updated *domain.Alert) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.alerts[prior.ID]
	if !ok || !existing.UpdateTime.Equal(prior.UpdateTime) {
		return nil, store.ErrConflict
	}

	// Uniqueness constraint on the correlation scope. A rewrite that lands on
	// another current record's key conflicts, same as on create.
	for id, other := range r.alerts {
		if id == updated.ID {
			continue
		}
		if other.Environment == updated.Environment &&
			other.Resource == updated.Resource &&
			other.Event == updated.Event &&
			other.Customer == updated.Customer {
			return nil, store.ErrConflict
		}
	}

	r.alerts[updated.ID] = updated.Clone()
	return updated.Clone(), nil
}

// FindByID retrieves an alert by full id or unique short-id prefix.
func (r *AlertRepository) FindByID(ctx context.Context, id string) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if alert, ok := r.alerts[id]; ok {
		return alert.Clone(), nil
	}

	var match *domain.Alert
	for _, alert := range r.alerts {
		if strings.HasPrefix(alert.ID, id) {
			if match != nil {
				// Ambiguous prefix: never pick the first match silently.
				return nil, domain.ErrAlertNotFound
			}
			match = alert
		}
	}
	if match == nil {
		return nil, domain.ErrAlertNotFound
	}
	return match.Clone(), nil
}

// List retrieves alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.Alert
	for _, alert := range r.alerts {
		if filter.Environment != "" && alert.Environment != filter.Environment {
			continue
		}
		if filter.Resource != "" && alert.Resource != filter.Resource {
			continue
		}
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		if filter.Customer != "" && alert.Customer != filter.Customer {
			continue
		}
		results = append(results, alert.Clone())
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].LastReceiveTime.After(results[j].LastReceiveTime)
	})

	start := filter.Offset
	if start > len(results) {
		start = len(results)
	}
	end := len(results)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return results[start:end], nil
}

// Delete removes an alert permanently.
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[id]; !ok {
		return domain.ErrAlertNotFound
	}
	delete(r.alerts, id)
	return nil
}

// FindExpired returns alerts past their auto-expiry deadline.
func (r *AlertRepository) FindExpired(ctx context.Context, now time.Time) ([]*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.Alert
	for _, alert := range r.alerts {
		if alert.Status == domain.StatusExpired || alert.Status == domain.StatusShelved {
			continue
		}
		if alert.Timeout == 0 {
			continue
		}
		deadline := alert.LastReceiveTime.Add(time.Duration(alert.Timeout) * time.Second)
		if deadline.Before(now) {
			results = append(results, alert.Clone())
		}
	}
	return results, nil
}

// FindByStatus returns all alerts currently in the given status.
func (r *AlertRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.Alert
	for _, alert := range r.alerts {
		if alert.Status == status {
			results = append(results, alert.Clone())
		}
	}
	return results, nil
}

// DeleteResolvedBefore removes closed and expired alerts last written before
// the cutoff.
func (r *AlertRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []string
	for id, alert := range r.alerts {
		if alert.Status != domain.StatusClosed && alert.Status != domain.StatusExpired {
			continue
		}
		if alert.LastReceiveTime.Before(cutoff) {
			delete(r.alerts, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

// DeleteInformationalBefore removes low-value severity alerts last written
// before the cutoff.
func (r *AlertRepository) DeleteInformationalBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []string
	for id, alert := range r.alerts {
		switch alert.Severity {
		case domain.SeverityInformational, domain.SeverityDebug, domain.SeverityTrace:
		default:
			continue
		}
		if alert.LastReceiveTime.Before(cutoff) {
			delete(r.alerts, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

// Clear removes all data from the repository. Useful for test cleanup.
func (r *AlertRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = make(map[string]*domain.Alert)
}
