// Package memory provides an in-memory implementation of the stream
// publisher. This is useful for testing and development without external
// dependencies.
package memory

import (
	"context"
	"sync"

	"vigil-go/internal/domain"
)

// Published captures one publish call for inspection by tests.
type Published struct {
	Alert   *domain.Alert
	Outcome string
}

// Publisher is an in-memory implementation of stream.Publisher.
// It records every published alert in order. Safe for concurrent use.
type Publisher struct {
	mu        sync.Mutex
	published []Published
}

// NewPublisher creates a new in-memory publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish records the alert and outcome.
func (p *Publisher) Publish(ctx context.Context, alert *domain.Alert, outcome string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, Published{Alert: alert.Clone(), Outcome: outcome})
	return nil
}

// Published returns a snapshot of everything published so far.
func (p *Publisher) Published() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.published))
	copy(out, p.published)
	return out
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
