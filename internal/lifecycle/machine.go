// Package lifecycle implements the alarm state machine that drives alert
// status transitions. Transition is a pure function of its inputs; the
// machine holds only configuration and is safe to share across goroutines.
package lifecycle

import (
	"fmt"

	"vigil-go/internal/domain"
)

// InvalidActionError is returned when an action is not permitted from the
// alert's current status. The caller surfaces it without mutating the alert.
type InvalidActionError struct {
	Action domain.Action
	Status domain.Status
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q from status %q", e.Action, e.Status)
}

// Input carries everything the state machine needs to decide a transition.
type Input struct {
	// Severity is the incoming severity.
	Severity domain.Severity

	// PreviousSeverity is the severity held before the current event
	// identity appeared, or the placeholder default for a new alert.
	PreviousSeverity domain.Severity

	// Status is the stored current status. Empty means a brand-new alert.
	Status domain.Status

	// PreviousStatus is the status held immediately before the current one.
	PreviousStatus domain.Status

	// Requested is a status carried explicitly on the incoming write, for
	// example a webhook setting status directly. Empty if none.
	Requested domain.Status

	// Action is the explicit operator or housekeeping action. Empty if the
	// transition is driven by an event alone.
	Action domain.Action
}

// Machine encodes the alarm lifecycle rules.
type Machine struct {
	normal      domain.Severity
	defaultPrev domain.Severity
}

// New creates a state machine using the given normal severity. An empty
// severity selects the domain default.
func New(normal domain.Severity) *Machine {
	if normal == "" {
		normal = domain.DefaultNormalSeverity
	}
	return &Machine{
		normal:      normal,
		defaultPrev: domain.DefaultPreviousSeverity,
	}
}

// NormalSeverity returns the severity that auto-closes alerts.
func (m *Machine) NormalSeverity() domain.Severity {
	return m.normal
}

func (m *Machine) isNormal(s domain.Severity) bool {
	return s.Code() == m.normal.Code()
}

// Transition computes the next (severity, status) for an alert. It never
// mutates anything; preconditions that fail return an InvalidActionError.
//
// Rules are evaluated in precedence order: foreign actions pass through
// untouched, then explicit external statuses are reconciled, then the
// action-specific and status-specific rules, then the global auto-close on
// normal severity, and finally the identity catch-all.
func (m *Machine) Transition(in Input) (domain.Severity, domain.Status, error) {
	severity := in.Severity
	status := in.Status
	if status == "" {
		status = domain.DefaultStatus
	}
	previousStatus := in.PreviousStatus
	if previousStatus == "" {
		previousStatus = domain.DefaultStatus
	}
	previousSeverity := in.PreviousSeverity
	if previousSeverity == "" {
		previousSeverity = m.defaultPrev
	}

	// An action outside the recognized vocabulary was decided externally;
	// pass the current state through untouched.
	if in.Action != "" && !in.Action.IsValid() {
		return severity, status, nil
	}

	// No action but an explicit status on the write: a collaborator set the
	// status directly. Reconcile against severity and keep it.
	if in.Action == "" && in.Requested != "" && in.Requested != domain.StatusUnknown {
		if m.isNormal(severity) {
			return m.normal, domain.StatusClosed, nil
		}
		return severity, in.Requested, nil
	}

	switch in.Action {
	case domain.ActionUnack:
		if status != domain.StatusAck {
			return severity, status, &InvalidActionError{Action: in.Action, Status: status}
		}
		return severity, previousStatus, nil

	case domain.ActionUnshelve:
		if status != domain.StatusShelved {
			return severity, status, &InvalidActionError{Action: in.Action, Status: status}
		}
		return severity, previousStatus, nil

	case domain.ActionExpired:
		return severity, domain.StatusExpired, nil

	case domain.ActionTimeout:
		if previousStatus == domain.StatusAck {
			return severity, domain.StatusAck, nil
		}
		return severity, domain.StatusOpen, nil
	}

	switch status {
	case domain.StatusOpen:
		switch in.Action {
		case domain.ActionOpen:
			return severity, status, &InvalidActionError{Action: in.Action, Status: status}
		case domain.ActionAssign:
			return severity, domain.StatusAssign, nil
		case domain.ActionAck:
			return severity, domain.StatusAck, nil
		case domain.ActionShelve:
			return severity, domain.StatusShelved, nil
		case domain.ActionClose:
			return m.normal, domain.StatusClosed, nil
		}

	case domain.StatusAssign:
		switch in.Action {
		case domain.ActionOpen:
			return severity, domain.StatusOpen, nil
		case domain.ActionAssign:
			return severity, status, &InvalidActionError{Action: in.Action, Status: status}
		case domain.ActionAck:
			return severity, domain.StatusAck, nil
		case domain.ActionShelve:
			return severity, domain.StatusShelved, nil
		case domain.ActionClose:
			return m.normal, domain.StatusClosed, nil
		}

	case domain.StatusAck:
		switch in.Action {
		case domain.ActionOpen:
			return severity, domain.StatusOpen, nil
		case domain.ActionAssign:
			return severity, domain.StatusAssign, nil
		case domain.ActionAck:
			return severity, status, &InvalidActionError{Action: in.Action, Status: status}
		case domain.ActionShelve:
			return severity, domain.StatusShelved, nil
		case domain.ActionClose:
			return m.normal, domain.StatusClosed, nil
		}
		// A worsening severity reopens an acknowledged alert even without an
		// explicit action, unless the previous severity is the placeholder.
		if in.Action == "" && previousSeverity != m.defaultPrev &&
			domain.TrendOf(previousSeverity, severity) == domain.TrendMoreSevere {
			return severity, domain.StatusOpen, nil
		}

	case domain.StatusShelved:
		switch in.Action {
		case domain.ActionOpen:
			return severity, domain.StatusOpen, nil
		case domain.ActionAck, domain.ActionShelve, domain.ActionAssign:
			return severity, status, &InvalidActionError{Action: in.Action, Status: status}
		case domain.ActionClose:
			return m.normal, domain.StatusClosed, nil
		}

	case domain.StatusBlackout:
		if in.Action == domain.ActionClose {
			return m.normal, domain.StatusClosed, nil
		}
		// Other actions are deferred while suppressed.
		if in.Action != "" {
			return severity, status, nil
		}
		if m.isNormal(severity) {
			return m.normal, domain.StatusClosed, nil
		}
		// The pipeline re-applies blackout before commit if the event is
		// still inside a window, so reaching here means the window ended.
		return severity, previousStatus, nil

	case domain.StatusClosed:
		switch in.Action {
		case domain.ActionOpen:
			// A manual reopen restores the last real severity.
			return previousSeverity, domain.StatusOpen, nil
		case domain.ActionAck, domain.ActionShelve, domain.ActionClose, domain.ActionAssign:
			return severity, status, &InvalidActionError{Action: in.Action, Status: status}
		}
		if !m.isNormal(severity) {
			if previousStatus == domain.StatusShelved {
				return severity, domain.StatusShelved, nil
			}
			return severity, domain.StatusOpen, nil
		}

	case domain.StatusExpired:
		if in.Action != "" && in.Action != domain.ActionOpen {
			return severity, status, &InvalidActionError{Action: in.Action, Status: status}
		}
		if in.Action == domain.ActionOpen {
			return severity, domain.StatusOpen, nil
		}
		if !m.isNormal(severity) {
			return severity, domain.StatusOpen, nil
		}
		// Normal severity while already expired is a no-op, not a close.
		return severity, status, nil
	}

	// Global auto-close: normal severity closes the alert from any state.
	if m.isNormal(severity) {
		return m.normal, domain.StatusClosed, nil
	}

	return severity, status, nil
}
