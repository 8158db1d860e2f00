package lifecycle

import (
	"errors"
	"testing"

	"vigil-go/internal/domain"
)

func TestTransition_NewAlertDefaults(t *testing.T) {
	m := New("")

	severity, status, err := m.Transition(Input{
		Severity: domain.SeverityMajor,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if severity != domain.SeverityMajor {
		t.Errorf("severity = %v, want major", severity)
	}
	if status != domain.StatusOpen {
		t.Errorf("status = %v, want open", status)
	}
}

func TestTransition_NormalSeverityAutoCloses(t *testing.T) {
	m := New("")

	for _, from := range []domain.Status{
		domain.StatusOpen, domain.StatusAssign, domain.StatusAck, domain.StatusShelved,
	} {
		severity, status, err := m.Transition(Input{
			Severity:         domain.SeverityNormal,
			PreviousSeverity: domain.SeverityMajor,
			Status:           from,
		})
		if err != nil {
			t.Fatalf("Transition from %v error: %v", from, err)
		}
		if status != domain.StatusClosed {
			t.Errorf("status from %v = %v, want closed", from, status)
		}
		if severity != domain.SeverityNormal {
			t.Errorf("severity from %v = %v, want normal", from, severity)
		}
	}
}

func TestTransition_ClearedAliasAutoCloses(t *testing.T) {
	// "cleared" and "ok" share the normal rank, so they close too.
	m := New("")

	for _, s := range []domain.Severity{domain.SeverityCleared, domain.SeverityOK} {
		_, status, err := m.Transition(Input{
			Severity:         s,
			PreviousSeverity: domain.SeverityMajor,
			Status:           domain.StatusOpen,
		})
		if err != nil {
			t.Fatalf("Transition error: %v", err)
		}
		if status != domain.StatusClosed {
			t.Errorf("status for %v = %v, want closed", s, status)
		}
	}
}

func TestTransition_RequestedStatusKept(t *testing.T) {
	m := New("")

	// A write carrying an explicit status keeps it when severity is not normal.
	_, status, err := m.Transition(Input{
		Severity:  domain.SeverityMajor,
		Requested: domain.StatusAck,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusAck {
		t.Errorf("status = %v, want ack", status)
	}

	// Normal severity overrides the requested status.
	_, status, err = m.Transition(Input{
		Severity:  domain.SeverityNormal,
		Requested: domain.StatusAck,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusClosed {
		t.Errorf("status = %v, want closed", status)
	}

	// An unknown requested status is ignored.
	_, status, err = m.Transition(Input{
		Severity:  domain.SeverityMajor,
		Requested: domain.StatusUnknown,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusOpen {
		t.Errorf("status = %v, want open", status)
	}
}

func TestTransition_OperatorActions(t *testing.T) {
	m := New("")

	tests := []struct {
		name   string
		status domain.Status
		prev   domain.Status
		action domain.Action
		want   domain.Status
	}{
		{"ack from open", domain.StatusOpen, "", domain.ActionAck, domain.StatusAck},
		{"assign from open", domain.StatusOpen, "", domain.ActionAssign, domain.StatusAssign},
		{"shelve from open", domain.StatusOpen, "", domain.ActionShelve, domain.StatusShelved},
		{"close from open", domain.StatusOpen, "", domain.ActionClose, domain.StatusClosed},
		{"ack from assign", domain.StatusAssign, "", domain.ActionAck, domain.StatusAck},
		{"open from assign", domain.StatusAssign, "", domain.ActionOpen, domain.StatusOpen},
		{"shelve from ack", domain.StatusAck, "", domain.ActionShelve, domain.StatusShelved},
		{"assign from ack", domain.StatusAck, "", domain.ActionAssign, domain.StatusAssign},
		{"open from shelved", domain.StatusShelved, "", domain.ActionOpen, domain.StatusOpen},
		{"close from shelved", domain.StatusShelved, "", domain.ActionClose, domain.StatusClosed},
		{"close from blackout", domain.StatusBlackout, domain.StatusOpen, domain.ActionClose, domain.StatusClosed},
		{"unack returns to previous", domain.StatusAck, domain.StatusAssign, domain.ActionUnack, domain.StatusAssign},
		{"unshelve returns to previous", domain.StatusShelved, domain.StatusAck, domain.ActionUnshelve, domain.StatusAck},
		{"open from closed", domain.StatusClosed, "", domain.ActionOpen, domain.StatusOpen},
		{"open from expired", domain.StatusExpired, "", domain.ActionOpen, domain.StatusOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status, err := m.Transition(Input{
				Severity:         domain.SeverityMajor,
				PreviousSeverity: domain.SeverityWarning,
				Status:           tt.status,
				PreviousStatus:   tt.prev,
				Action:           tt.action,
			})
			if err != nil {
				t.Fatalf("Transition error: %v", err)
			}
			if status != tt.want {
				t.Errorf("status = %v, want %v", status, tt.want)
			}
		})
	}
}

func TestTransition_InvalidActions(t *testing.T) {
	m := New("")

	tests := []struct {
		name   string
		status domain.Status
		action domain.Action
	}{
		{"open from open", domain.StatusOpen, domain.ActionOpen},
		{"assign from assign", domain.StatusAssign, domain.ActionAssign},
		{"ack from ack", domain.StatusAck, domain.ActionAck},
		{"ack from shelved", domain.StatusShelved, domain.ActionAck},
		{"assign from shelved", domain.StatusShelved, domain.ActionAssign},
		{"shelve from shelved", domain.StatusShelved, domain.ActionShelve},
		{"unack from open", domain.StatusOpen, domain.ActionUnack},
		{"unshelve from open", domain.StatusOpen, domain.ActionUnshelve},
		{"ack from closed", domain.StatusClosed, domain.ActionAck},
		{"shelve from closed", domain.StatusClosed, domain.ActionShelve},
		{"close from closed", domain.StatusClosed, domain.ActionClose},
		{"assign from closed", domain.StatusClosed, domain.ActionAssign},
		{"ack from expired", domain.StatusExpired, domain.ActionAck},
		{"close from expired", domain.StatusExpired, domain.ActionClose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			severity, status, err := m.Transition(Input{
				Severity:         domain.SeverityMajor,
				PreviousSeverity: domain.SeverityWarning,
				Status:           tt.status,
				Action:           tt.action,
			})
			var invalid *InvalidActionError
			if !errors.As(err, &invalid) {
				t.Fatalf("Transition error = %v, want InvalidActionError", err)
			}
			// The current state must come back untouched.
			if status != tt.status {
				t.Errorf("status = %v, want %v", status, tt.status)
			}
			if severity != domain.SeverityMajor {
				t.Errorf("severity = %v, want major", severity)
			}
		})
	}
}

func TestTransition_UnrecognizedActionPassesThrough(t *testing.T) {
	m := New("")

	severity, status, err := m.Transition(Input{
		Severity: domain.SeverityMajor,
		Status:   domain.StatusAck,
		Action:   "escalate",
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if severity != domain.SeverityMajor || status != domain.StatusAck {
		t.Errorf("(%v, %v), want state untouched", severity, status)
	}
}

func TestTransition_AckAutoReopensOnWorsening(t *testing.T) {
	m := New("")

	_, status, err := m.Transition(Input{
		Severity:         domain.SeverityCritical,
		PreviousSeverity: domain.SeverityWarning,
		Status:           domain.StatusAck,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusOpen {
		t.Errorf("status = %v, want open on worsening", status)
	}

	// An improvement leaves the ack in place.
	_, status, err = m.Transition(Input{
		Severity:         domain.SeverityMinor,
		PreviousSeverity: domain.SeverityCritical,
		Status:           domain.StatusAck,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusAck {
		t.Errorf("status = %v, want ack on improvement", status)
	}

	// The placeholder previous severity never triggers a reopen.
	_, status, err = m.Transition(Input{
		Severity:         domain.SeverityCritical,
		PreviousSeverity: domain.SeverityIndeterminate,
		Status:           domain.StatusAck,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusAck {
		t.Errorf("status = %v, want ack with placeholder previous", status)
	}
}

func TestTransition_ExpiredAndTimeoutActions(t *testing.T) {
	m := New("")

	// The expired action works from any status.
	_, status, err := m.Transition(Input{
		Severity: domain.SeverityMajor,
		Status:   domain.StatusAck,
		Action:   domain.ActionExpired,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusExpired {
		t.Errorf("status = %v, want expired", status)
	}

	// Timeout returns to ack when the alert was acked before.
	_, status, err = m.Transition(Input{
		Severity:       domain.SeverityMajor,
		Status:         domain.StatusShelved,
		PreviousStatus: domain.StatusAck,
		Action:         domain.ActionTimeout,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusAck {
		t.Errorf("status = %v, want ack", status)
	}

	// Otherwise timeout reopens.
	_, status, err = m.Transition(Input{
		Severity:       domain.SeverityMajor,
		Status:         domain.StatusShelved,
		PreviousStatus: domain.StatusOpen,
		Action:         domain.ActionTimeout,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusOpen {
		t.Errorf("status = %v, want open", status)
	}
}

func TestTransition_Blackout(t *testing.T) {
	m := New("")

	// Non-close actions are deferred while suppressed.
	_, status, err := m.Transition(Input{
		Severity: domain.SeverityMajor,
		Status:   domain.StatusBlackout,
		Action:   domain.ActionAck,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusBlackout {
		t.Errorf("status = %v, want blackout", status)
	}

	// Normal severity closes even mid-blackout.
	_, status, err = m.Transition(Input{
		Severity:         domain.SeverityNormal,
		PreviousSeverity: domain.SeverityMajor,
		Status:           domain.StatusBlackout,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusClosed {
		t.Errorf("status = %v, want closed", status)
	}

	// Once the window has ended the alert reverts to its previous status.
	_, status, err = m.Transition(Input{
		Severity:       domain.SeverityMajor,
		Status:         domain.StatusBlackout,
		PreviousStatus: domain.StatusAck,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusAck {
		t.Errorf("status = %v, want ack", status)
	}
}

func TestTransition_ClosedReopens(t *testing.T) {
	m := New("")

	// A non-normal event reopens a closed alert.
	_, status, err := m.Transition(Input{
		Severity:         domain.SeverityMajor,
		PreviousSeverity: domain.SeverityMajor,
		Status:           domain.StatusClosed,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusOpen {
		t.Errorf("status = %v, want open", status)
	}

	// It returns to shelved when it was shelved before closing.
	_, status, err = m.Transition(Input{
		Severity:         domain.SeverityMajor,
		PreviousSeverity: domain.SeverityMajor,
		Status:           domain.StatusClosed,
		PreviousStatus:   domain.StatusShelved,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusShelved {
		t.Errorf("status = %v, want shelved", status)
	}

	// Normal severity while closed stays closed.
	_, status, err = m.Transition(Input{
		Severity:         domain.SeverityNormal,
		PreviousSeverity: domain.SeverityMajor,
		Status:           domain.StatusClosed,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusClosed {
		t.Errorf("status = %v, want closed", status)
	}
}

func TestTransition_ManualReopenRestoresSeverity(t *testing.T) {
	m := New("")

	severity, status, err := m.Transition(Input{
		Severity:         domain.SeverityNormal,
		PreviousSeverity: domain.SeverityCritical,
		Status:           domain.StatusClosed,
		Action:           domain.ActionOpen,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if severity != domain.SeverityCritical {
		t.Errorf("severity = %v, want critical restored", severity)
	}
	if status != domain.StatusOpen {
		t.Errorf("status = %v, want open", status)
	}
}

func TestTransition_Expired(t *testing.T) {
	m := New("")

	// A non-normal event reopens an expired alert.
	_, status, err := m.Transition(Input{
		Severity:         domain.SeverityMajor,
		PreviousSeverity: domain.SeverityMajor,
		Status:           domain.StatusExpired,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusOpen {
		t.Errorf("status = %v, want open", status)
	}

	// Normal severity while expired is a no-op, not a close.
	severity, status, err := m.Transition(Input{
		Severity:         domain.SeverityNormal,
		PreviousSeverity: domain.SeverityMajor,
		Status:           domain.StatusExpired,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if status != domain.StatusExpired {
		t.Errorf("status = %v, want expired", status)
	}
	if severity != domain.SeverityNormal {
		t.Errorf("severity = %v, want normal", severity)
	}
}

func TestTransition_IsDeterministic(t *testing.T) {
	m := New("")
	in := Input{
		Severity:         domain.SeverityCritical,
		PreviousSeverity: domain.SeverityWarning,
		Status:           domain.StatusAck,
		PreviousStatus:   domain.StatusOpen,
	}

	s1, st1, err1 := m.Transition(in)
	s2, st2, err2 := m.Transition(in)
	if s1 != s2 || st1 != st2 || (err1 == nil) != (err2 == nil) {
		t.Errorf("Transition is not deterministic: (%v,%v,%v) vs (%v,%v,%v)",
			s1, st1, err1, s2, st2, err2)
	}
}
