package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil-go/internal/domain"
)

func testWindow(id string, start, end time.Time) *domain.Suppression {
	return &domain.Suppression{
		ID:          id,
		Environment: "production",
		StartTime:   start,
		EndTime:     end,
	}
}

func TestSuppressionStore_CRUD(t *testing.T) {
	s := NewSuppressionStore()
	ctx := context.Background()
	now := time.Now().UTC()

	window := testWindow("sup-1", now, now.Add(time.Hour))
	if err := s.Create(ctx, window); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := s.Get(ctx, "sup-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != "sup-1" {
		t.Errorf("ID = %v, want sup-1", got.ID)
	}

	if err := s.Delete(ctx, "sup-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, "sup-1"); !errors.Is(err, domain.ErrSuppressionNotFound) {
		t.Errorf("Get after delete = %v, want ErrSuppressionNotFound", err)
	}
	if err := s.Delete(ctx, "sup-1"); !errors.Is(err, domain.ErrSuppressionNotFound) {
		t.Errorf("Delete again = %v, want ErrSuppressionNotFound", err)
	}
}

func TestSuppressionStore_ListDropsEnded(t *testing.T) {
	s := NewSuppressionStore()
	ctx := context.Background()
	now := time.Now().UTC()

	_ = s.Create(ctx, testWindow("ended", now.Add(-2*time.Hour), now.Add(-time.Hour)))
	_ = s.Create(ctx, testWindow("active", now.Add(-time.Hour), now.Add(time.Hour)))
	_ = s.Create(ctx, testWindow("future", now.Add(time.Hour), now.Add(2*time.Hour)))

	windows, err := s.List(ctx, now)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("len = %v, want 2", len(windows))
	}
	if windows[0].ID != "active" || windows[1].ID != "future" {
		t.Errorf("windows = [%v %v], want [active future]", windows[0].ID, windows[1].ID)
	}
}

func TestSuppressionStore_Active(t *testing.T) {
	s := NewSuppressionStore()
	ctx := context.Background()
	now := time.Now().UTC()

	window := testWindow("sup-1", now.Add(-time.Minute), now.Add(time.Hour))
	window.Resource = "web01"
	_ = s.Create(ctx, window)

	alert := &domain.Alert{
		Environment: "production",
		Resource:    "web01",
		Event:       "HttpError",
		Severity:    domain.SeverityMajor,
	}

	active, err := s.Active(ctx, alert, now)
	if err != nil {
		t.Fatalf("Active error: %v", err)
	}
	if !active {
		t.Error("alert inside window should be suppressed")
	}

	other := &domain.Alert{
		Environment: "production",
		Resource:    "web02",
		Event:       "HttpError",
		Severity:    domain.SeverityMajor,
	}
	active, err = s.Active(ctx, other, now)
	if err != nil {
		t.Fatalf("Active error: %v", err)
	}
	if active {
		t.Error("alert outside window should not be suppressed")
	}

	// After the window ends nothing is suppressed.
	active, err = s.Active(ctx, alert, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Active error: %v", err)
	}
	if active {
		t.Error("ended window should not suppress")
	}
}
