package domain

import (
	"errors"
	"testing"
	"time"
)

func activeWindow() *Suppression {
	now := time.Now().UTC()
	return &Suppression{
		ID:          "sup-1",
		Environment: "production",
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(time.Hour),
	}
}

func TestSuppressionValidate(t *testing.T) {
	if err := activeWindow().Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	missing := activeWindow()
	missing.Environment = ""
	if err := missing.Validate(); !errors.Is(err, ErrSuppressionEnvironment) {
		t.Errorf("Validate = %v, want %v", err, ErrSuppressionEnvironment)
	}

	inverted := activeWindow()
	inverted.EndTime = inverted.StartTime
	if err := inverted.Validate(); !errors.Is(err, ErrSuppressionWindow) {
		t.Errorf("Validate = %v, want %v", err, ErrSuppressionWindow)
	}
}

func TestSuppressionActive(t *testing.T) {
	s := activeWindow()
	now := time.Now().UTC()

	if !s.Active(now) {
		t.Error("window should be active now")
	}
	if s.Active(s.StartTime.Add(-time.Minute)) {
		t.Error("window should not be active before start")
	}
	if s.Active(s.EndTime) {
		t.Error("window end is exclusive")
	}
	if !s.Active(s.StartTime) {
		t.Error("window start is inclusive")
	}
}

func TestSuppressionMatches(t *testing.T) {
	now := time.Now().UTC()
	alert := &Alert{
		Environment: "production",
		Resource:    "web01",
		Event:       "HttpError",
		Group:       "Web",
		Tags:        []string{"dc1", "linux"},
		Severity:    SeverityMajor,
	}

	base := activeWindow()
	if !base.Matches(alert, now) {
		t.Error("environment-only window should match")
	}

	withResource := activeWindow()
	withResource.Resource = "web01"
	if !withResource.Matches(alert, now) {
		t.Error("matching resource should match")
	}

	wrongResource := activeWindow()
	wrongResource.Resource = "web02"
	if wrongResource.Matches(alert, now) {
		t.Error("wrong resource should not match")
	}

	withTags := activeWindow()
	withTags.Tags = []string{"dc1"}
	if !withTags.Matches(alert, now) {
		t.Error("subset of alert tags should match")
	}

	missingTag := activeWindow()
	missingTag.Tags = []string{"dc1", "windows"}
	if missingTag.Matches(alert, now) {
		t.Error("tag absent on alert should not match")
	}

	wrongEnv := activeWindow()
	wrongEnv.Environment = "staging"
	if wrongEnv.Matches(alert, now) {
		t.Error("wrong environment should not match")
	}

	wrongCustomer := activeWindow()
	wrongCustomer.Customer = "acme"
	if wrongCustomer.Matches(alert, now) {
		t.Error("customer window should not match tenantless alert")
	}

	ended := activeWindow()
	ended.EndTime = now.Add(-time.Minute)
	if ended.Matches(alert, now) {
		t.Error("ended window should not match")
	}
}

func TestSuppressionPriority(t *testing.T) {
	broad := activeWindow()

	specific := activeWindow()
	specific.Resource = "web01"
	specific.Event = "HttpError"

	if specific.Priority() <= broad.Priority() {
		t.Errorf("specific priority = %v, want greater than broad %v",
			specific.Priority(), broad.Priority())
	}

	tagged := activeWindow()
	tagged.Tags = []string{"dc1"}
	if tagged.Priority() <= broad.Priority() {
		t.Errorf("tagged priority = %v, want greater than broad %v",
			tagged.Priority(), broad.Priority())
	}
}
