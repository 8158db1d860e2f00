package domain

import (
	"errors"
	"time"
)

// Validation errors for Suppression.
var (
	ErrSuppressionEnvironment = errors.New("suppression environment is required")
	ErrSuppressionWindow      = errors.New("suppression end time must be after start time")
)

// Suppression is a time-bounded blackout window. Events matching an active
// window are accepted but forced to status blackout regardless of severity.
//
// All set criteria must match. An unset criterion matches everything, so the
// least specific window is environment-only and the most specific one pins
// resource, event, group and tags.
type Suppression struct {
	ID          string    `json:"id"`
	Environment string    `json:"environment"`
	Resource    string    `json:"resource,omitempty"`
	Event       string    `json:"event,omitempty"`
	Group       string    `json:"group,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Customer    string    `json:"customer,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Text        string    `json:"text,omitempty"`
}

// Validate checks the suppression window is well formed.
func (s *Suppression) Validate() error {
	if s.Environment == "" {
		return ErrSuppressionEnvironment
	}
	if !s.EndTime.After(s.StartTime) {
		return ErrSuppressionWindow
	}
	return nil
}

// Active reports whether the window covers the given instant.
func (s *Suppression) Active(at time.Time) bool {
	return !at.Before(s.StartTime) && at.Before(s.EndTime)
}

// Matches reports whether the alert falls inside this window at the given
// time. Every criterion set on the window must match the alert.
func (s *Suppression) Matches(a *Alert, at time.Time) bool {
	if !s.Active(at) {
		return false
	}
	if s.Environment != a.Environment {
		return false
	}
	if s.Customer != "" && s.Customer != a.Customer {
		return false
	}
	if s.Resource != "" && s.Resource != a.Resource {
		return false
	}
	if s.Event != "" && s.Event != a.Event {
		return false
	}
	if s.Group != "" && s.Group != a.Group {
		return false
	}
	for _, tag := range s.Tags {
		if !containsTag(a.Tags, tag) {
			return false
		}
	}
	return true
}

// Priority ranks windows by specificity: when several windows cover the same
// event the most specific one governs. Higher is more specific.
func (s *Suppression) Priority() int {
	priority := 1
	if s.Resource != "" {
		priority += 4
	}
	if s.Event != "" {
		priority += 4
	}
	if s.Group != "" {
		priority += 2
	}
	if len(s.Tags) > 0 {
		priority += 2
	}
	if s.Customer != "" {
		priority++
	}
	return priority
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
