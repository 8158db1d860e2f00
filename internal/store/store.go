// Package store defines the persistence contract consumed by the engine.
// Implementations must provide atomic compare-and-swap upsert semantics so
// that concurrent writers for the same matching key serialize correctly.
package store

import (
	"context"
	"errors"
	"time"

	"vigil-go/internal/domain"
)

var (
	// ErrConflict is returned when a concurrent writer won the race: a create
	// hit the uniqueness constraint, or a conditional update matched zero
	// rows. The engine reacts by re-running classification.
	ErrConflict = errors.New("write conflict")

	// ErrUnavailable is returned when the store timed out or is unreachable.
	// It is a transient failure and must never be read as "no match found".
	ErrUnavailable = errors.New("store unavailable")
)

// AlertRepository is the durable store for alerts.
//
// FindDuplicate and FindCorrelated are pure queries with no side effects;
// they return (nil, nil) when nothing matches. Create and Update are the
// atomic write primitives: a failed precondition yields ErrConflict, never a
// partial write.
type AlertRepository interface {
	// FindDuplicate returns the alert with the exact matching key
	// (environment, resource, event, severity, customer), or nil.
	FindDuplicate(ctx context.Context, incoming *domain.Alert) (*domain.Alert, error)

	// FindCorrelated returns the alert correlated to the incoming event on
	// (environment, resource, customer) via event/severity or the correlate
	// set, or nil.
	FindCorrelated(ctx context.Context, incoming *domain.Alert) (*domain.Alert, error)

	// Create inserts a new alert. A uniqueness violation on the correlation
	// scope returns ErrConflict.
	Create(ctx context.Context, alert *domain.Alert) (*domain.Alert, error)

	// Update replaces the alert previously read as prior, conditional on the
	// stored UpdateTime still matching prior's. Zero rows affected returns
	// ErrConflict. On success the post-update alert is returned.
	Update(ctx context.Context, prior, updated *domain.Alert) (*domain.Alert, error)

	// FindByID retrieves an alert by full id or unique short-id prefix.
	// An unknown id or an ambiguous prefix returns domain.ErrAlertNotFound.
	FindByID(ctx context.Context, id string) (*domain.Alert, error)

	// List retrieves alerts matching the filter, newest first.
	List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error)

	// Delete removes an alert permanently.
	Delete(ctx context.Context, id string) error

	// FindExpired returns alerts whose status is neither expired nor shelved,
	// whose timeout is non-zero and whose last receive time plus timeout has
	// passed.
	FindExpired(ctx context.Context, now time.Time) ([]*domain.Alert, error)

	// FindByStatus returns all alerts currently in the given status.
	FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Alert, error)

	// DeleteResolvedBefore removes closed and expired alerts last written
	// before the cutoff, returning the deleted ids.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	// DeleteInformationalBefore removes informational, debug and trace
	// severity alerts last written before the cutoff, returning the deleted ids.
	DeleteInformationalBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// SuppressionStore holds blackout windows. Windows are ephemeral: once the
// end time passes an implementation is free to drop them.
type SuppressionStore interface {
	// Create stores a suppression window.
	Create(ctx context.Context, suppression *domain.Suppression) error

	// Delete removes a suppression window by id.
	Delete(ctx context.Context, id string) error

	// Get retrieves a suppression window by id.
	Get(ctx context.Context, id string) (*domain.Suppression, error)

	// List returns all windows that are active at or after the given time.
	List(ctx context.Context, at time.Time) ([]*domain.Suppression, error)

	// Active reports whether the alert falls inside any window covering the
	// given instant, honoring the specificity priority when several match.
	Active(ctx context.Context, alert *domain.Alert, at time.Time) (bool, error)
}
