package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors surfaced by the core.
var (
	// ErrAlertNotFound is returned when an alert cannot be found, including
	// when a short-id prefix matches more than one alert.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrSuppressionNotFound is returned when a suppression window cannot be found.
	ErrSuppressionNotFound = errors.New("suppression not found")
)

// Validation errors for Alert.
var (
	ErrEmptyResource       = errors.New("resource is required")
	ErrEmptyEvent          = errors.New("event is required")
	ErrEmptyEnvironment    = errors.New("environment is required")
	ErrInvalidSeverity     = errors.New("severity is not a recognized severity")
	ErrInvalidStatus       = errors.New("status is not a recognized status")
	ErrNegativeTimeout     = errors.New("timeout must be zero or positive")
	ErrMalformedAttributes = errors.New("attribute keys must not contain '.' or '$'")
)

// Alert is the durable current state of one logical problem.
//
// A new event is matched against existing alerts on the exact key
// (environment, resource, event, severity, customer) for duplicates, and on
// (environment, resource, customer) plus the correlate set for correlations.
// At most one alert exists per key at any time; the persistence layer
// enforces this with a uniqueness constraint on the correlation scope.
type Alert struct {
	// ID is the unique identifier, generated at creation.
	ID string `json:"id"`

	Environment string   `json:"environment"`
	Resource    string   `json:"resource"`
	Event       string   `json:"event"`
	Severity    Severity `json:"severity"`

	// Correlate lists alternate event names considered the same problem under
	// a different event label. The alert's own Event is implicitly a member.
	Correlate []string `json:"correlate,omitempty"`

	Status Status `json:"status"`

	// PreviousSeverity is the severity held before the current event
	// identity appeared. It only changes on the correlate branch and on
	// severity-changing actions, never on exact duplicates.
	PreviousSeverity Severity `json:"previousSeverity"`

	// PreviousStatus is the status held immediately before the current one.
	// Unack and unshelve return here.
	PreviousStatus Status `json:"previousStatus,omitempty"`

	// TrendIndication is always recomputed from (PreviousSeverity, Severity).
	TrendIndication Trend `json:"trendIndication"`

	Value   string   `json:"value,omitempty"`
	Text    string   `json:"text,omitempty"`
	Group   string   `json:"group,omitempty"`
	Origin  string   `json:"origin,omitempty"`
	Service []string `json:"service,omitempty"`
	Tags    []string `json:"tags,omitempty"`

	// Attributes is a free-form string-keyed map. Keys containing "." or "$"
	// are rejected at validation time regardless of target store.
	Attributes map[string]any `json:"attributes,omitempty"`

	// Customer is an optional tenant partition. Two tenants never match each
	// other's alerts.
	Customer string `json:"customer,omitempty"`

	// DuplicateCount is incremented on exact duplicates and reset to zero on
	// creation and correlation.
	DuplicateCount int `json:"duplicateCount"`

	// Repeat is true when the last write was an exact duplicate.
	Repeat bool `json:"repeat"`

	// Timeout is the auto-expiry deadline in seconds after the last receive.
	// Zero means the alert never auto-expires.
	Timeout int `json:"timeout"`

	// CreateTime is when the current event identity was first seen; it moves
	// forward on correlation.
	CreateTime time.Time `json:"createTime"`

	// ReceiveTime is when this alert was first created. It never changes.
	ReceiveTime time.Time `json:"receiveTime"`

	// LastReceiveID and LastReceiveTime identify the most recent write of any kind.
	LastReceiveID   string    `json:"lastReceiveId"`
	LastReceiveTime time.Time `json:"lastReceiveTime"`

	// UpdateTime advances on every write and doubles as the compare-and-swap
	// token for atomic updates.
	UpdateTime time.Time `json:"updateTime"`

	History []HistoryEntry `json:"history,omitempty"`
}

// NewAlertID generates a fresh alert identifier.
func NewAlertID() string {
	return uuid.New().String()
}

// Validate checks the alert has all required fields with valid values.
// Returns an error describing the first validation failure, or nil if valid.
func (a *Alert) Validate() error {
	if a.Resource == "" {
		return ErrEmptyResource
	}
	if a.Event == "" {
		return ErrEmptyEvent
	}
	if a.Environment == "" {
		return ErrEmptyEnvironment
	}
	if !a.Severity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, a.Severity)
	}
	if a.Status != "" && !a.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	if a.Timeout < 0 {
		return ErrNegativeTimeout
	}
	for key := range a.Attributes {
		if strings.ContainsAny(key, ".$") {
			return fmt.Errorf("%w: %q", ErrMalformedAttributes, key)
		}
	}
	return nil
}

// IsDuplicateOf reports whether incoming is an exact duplicate of this alert:
// identical (environment, resource, event, severity, customer).
func (a *Alert) IsDuplicateOf(incoming *Alert) bool {
	return a.Environment == incoming.Environment &&
		a.Resource == incoming.Resource &&
		a.Event == incoming.Event &&
		a.Severity == incoming.Severity &&
		a.Customer == incoming.Customer
}

// IsCorrelatedTo reports whether incoming correlates to this alert: same
// (environment, resource, customer) and either the incoming event name is in
// this alert's correlate set, or the event matches with a different severity.
func (a *Alert) IsCorrelatedTo(incoming *Alert) bool {
	if a.Environment != incoming.Environment ||
		a.Resource != incoming.Resource ||
		a.Customer != incoming.Customer {
		return false
	}
	if a.Event == incoming.Event && a.Severity != incoming.Severity {
		return true
	}
	for _, event := range a.Correlate {
		if event == incoming.Event {
			return true
		}
	}
	return false
}

// MergeTags unions incoming tags into the alert's tag set, preserving the
// order of first appearance.
func (a *Alert) MergeTags(incoming []string) {
	seen := make(map[string]bool, len(a.Tags))
	for _, tag := range a.Tags {
		seen[tag] = true
	}
	for _, tag := range incoming {
		if !seen[tag] {
			a.Tags = append(a.Tags, tag)
			seen[tag] = true
		}
	}
}

// MergeAttributes applies incoming attributes last-write-wins per key.
// A nil value deletes the key.
func (a *Alert) MergeAttributes(incoming map[string]any) {
	if len(incoming) == 0 {
		return
	}
	if a.Attributes == nil {
		a.Attributes = make(map[string]any, len(incoming))
	}
	for key, value := range incoming {
		if value == nil {
			delete(a.Attributes, key)
			continue
		}
		a.Attributes[key] = value
	}
}

// Clone returns a deep copy of the alert.
func (a *Alert) Clone() *Alert {
	clone := *a
	clone.Correlate = append([]string(nil), a.Correlate...)
	clone.Service = append([]string(nil), a.Service...)
	clone.Tags = append([]string(nil), a.Tags...)
	clone.History = append([]HistoryEntry(nil), a.History...)
	if a.Attributes != nil {
		clone.Attributes = make(map[string]any, len(a.Attributes))
		for key, value := range a.Attributes {
			clone.Attributes[key] = value
		}
	}
	return &clone
}

// AlertFilter provides filtering options for querying alerts.
type AlertFilter struct {
	Environment string
	Resource    string
	Status      Status
	Severity    Severity
	Customer    string
	Limit       int
	Offset      int
}
