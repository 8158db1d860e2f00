// Package stream defines the outbound alert stream. Every accepted write is
// published so downstream consumers (notification routers, archival, search
// indexers) observe each state change. This abstraction allows swapping
// implementations (Kafka, in-memory) without changing business logic.
package stream

import (
	"context"

	"vigil-go/internal/domain"
)

// Publisher publishes accepted alert state changes.
// Implementations must be safe for concurrent use.
type Publisher interface {
	// Publish sends the post-write alert together with the ingestion outcome
	// ("created", "duplicate", "correlated", "action", ...). Messages for the
	// same matching key must preserve order.
	Publish(ctx context.Context, alert *domain.Alert, outcome string) error

	// Close releases any resources held by the publisher.
	Close() error
}
