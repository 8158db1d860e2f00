// Package hook defines the pre/post receive extension points invoked around
// every ingestion. Hooks run synchronously and in registration order.
package hook

import (
	"context"
	"errors"
	"fmt"

	"vigil-go/internal/domain"
)

// Hook is the capability interface for ingestion plugins.
//
// PreReceive runs before classification and may mutate the alert or reject
// it by returning a RejectError. PostReceive runs after a successful write;
// its errors are reported but do not undo the write.
type Hook interface {
	PreReceive(ctx context.Context, alert *domain.Alert) (*domain.Alert, error)
	PostReceive(ctx context.Context, alert *domain.Alert) error
}

// RejectError is a deliberate rejection of an alert by a pre-receive hook.
// It is a normal "alert not accepted" outcome, distinct from a hook failure.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("alert rejected: %s", e.Reason)
}

// IsReject reports whether err is (or wraps) a deliberate rejection.
func IsReject(err error) bool {
	var reject *RejectError
	return errors.As(err, &reject)
}

// EnvironmentPolicy rejects alerts whose environment is not in the allowed
// set. An empty allowed set accepts everything.
type EnvironmentPolicy struct {
	Allowed []string
}

// PreReceive rejects alerts from unknown environments.
func (p *EnvironmentPolicy) PreReceive(ctx context.Context, alert *domain.Alert) (*domain.Alert, error) {
	if len(p.Allowed) == 0 {
		return alert, nil
	}
	for _, env := range p.Allowed {
		if env == alert.Environment {
			return alert, nil
		}
	}
	return nil, &RejectError{Reason: fmt.Sprintf("environment %q is not an allowed environment", alert.Environment)}
}

// PostReceive is a no-op for the environment policy.
func (p *EnvironmentPolicy) PostReceive(ctx context.Context, alert *domain.Alert) error {
	return nil
}
