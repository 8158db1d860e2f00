package domain

// Status represents the current lifecycle state of an alert.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAssign   Status = "assign"
	StatusAck      Status = "ack"
	StatusShelved  Status = "shelved"
	StatusBlackout Status = "blackout"
	StatusClosed   Status = "closed"
	StatusExpired  Status = "expired"
	StatusUnknown  Status = "unknown"
)

// DefaultStatus is the status assigned to a new alert when the state machine
// does not decide otherwise.
const DefaultStatus = StatusOpen

// IsValid returns true if the status is a known valid value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusAssign, StatusAck, StatusShelved,
		StatusBlackout, StatusClosed, StatusExpired, StatusUnknown:
		return true
	default:
		return false
	}
}

// Action represents an explicit operation requested against an alert, either
// by an operator or by the housekeeping sweep.
type Action string

const (
	ActionOpen     Action = "open"
	ActionAssign   Action = "assign"
	ActionAck      Action = "ack"
	ActionUnack    Action = "unack"
	ActionShelve   Action = "shelve"
	ActionUnshelve Action = "unshelve"
	ActionClose    Action = "close"
	ActionExpired  Action = "expired"
	ActionTimeout  Action = "timeout"
)

// IsValid returns true if the action is part of the recognized action
// vocabulary. Plugin-supplied actions outside this set bypass the state
// machine entirely.
func (a Action) IsValid() bool {
	switch a {
	case ActionOpen, ActionAssign, ActionAck, ActionUnack, ActionShelve,
		ActionUnshelve, ActionClose, ActionExpired, ActionTimeout:
		return true
	default:
		return false
	}
}
