// Package engine implements the core ingestion pipeline. It classifies each
// inbound event as a brand-new problem, an exact duplicate or a correlated
// change, drives the alarm state machine, maintains the bounded history log
// and commits every branch as a single atomic write.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vigil-go/internal/domain"
	"vigil-go/internal/hook"
	"vigil-go/internal/lifecycle"
	"vigil-go/internal/metrics"
	"vigil-go/internal/store"
	"vigil-go/internal/stream"
)

// Errors returned by the engine.
var (
	// ErrValidation marks a malformed inbound alert, rejected before
	// classification with no side effects.
	ErrValidation = errors.New("alert validation failed")

	// ErrHookFailed marks an unexpected pre-receive hook error, distinct
	// from a deliberate hook rejection.
	ErrHookFailed = errors.New("pre-receive hook failed")
)

// Outcome reports how an inbound event was classified.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeCorrelated Outcome = "correlated"
)

// Config holds the pipeline settings.
type Config struct {
	// HistoryLimit caps the history log per alert. Oldest entries go first.
	HistoryLimit int

	// MaxWriteRetries bounds reclassification after a lost write race.
	MaxWriteRetries int
}

// Service is the decision-and-transition engine. It holds no in-process
// locks: per-key linearizability comes entirely from the repository's atomic
// create and compare-and-swap update primitives, so it is safe under
// concurrent callers and multi-process deployment.
type Service struct {
	repo         store.AlertRepository
	suppressions store.SuppressionStore
	machine      *lifecycle.Machine
	hooks        []hook.Hook
	publisher    stream.Publisher
	cfg          Config
	logger       *slog.Logger
}

// NewService creates a new engine service. The publisher may be nil when no
// outbound stream is configured; hooks run in the given order.
func NewService(
	repo store.AlertRepository,
	suppressions store.SuppressionStore,
	machine *lifecycle.Machine,
	hooks []hook.Hook,
	publisher stream.Publisher,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.MaxWriteRetries <= 0 {
		cfg.MaxWriteRetries = 3
	}
	return &Service{
		repo:         repo,
		suppressions: suppressions,
		machine:      machine,
		hooks:        hooks,
		publisher:    publisher,
		cfg:          cfg,
		logger:       logger,
	}
}

// Receive ingests one inbound event. It validates, runs the pre-receive
// hooks, checks blackout suppression, classifies the event against existing
// alerts and commits exactly one atomic write. A write lost to a concurrent
// writer is reclassified from scratch up to MaxWriteRetries times.
func (s *Service) Receive(ctx context.Context, incoming *domain.Alert) (*domain.Alert, Outcome, error) {
	start := time.Now()

	if err := incoming.Validate(); err != nil {
		metrics.AlertsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	a := incoming.Clone()
	a.History = nil
	if a.ID == "" {
		a.ID = domain.NewAlertID()
	}
	now := time.Now().UTC()
	if a.CreateTime.IsZero() {
		a.CreateTime = now
	}

	for _, h := range s.hooks {
		out, err := h.PreReceive(ctx, a)
		if err != nil {
			if hook.IsReject(err) {
				metrics.AlertsRejectedTotal.WithLabelValues("policy").Inc()
				s.logger.Info("alert rejected by hook",
					"resource", a.Resource, "event", a.Event, "error", err)
				return nil, "", err
			}
			metrics.AlertsRejectedTotal.WithLabelValues("hook").Inc()
			return nil, "", fmt.Errorf("%w: %v", ErrHookFailed, err)
		}
		a = out
	}

	suppressed, err := s.suppressions.Active(ctx, a, now)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check suppression windows: %w", err)
	}
	if suppressed {
		metrics.AlertsSuppressedTotal.WithLabelValues(a.Environment).Inc()
	}

	var (
		stored  *domain.Alert
		outcome Outcome
	)
	for attempt := 0; ; attempt++ {
		stored, outcome, err = s.classifyAndWrite(ctx, a, suppressed, now)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, "", err
		}
		metrics.WriteConflictsTotal.Inc()
		if attempt+1 >= s.cfg.MaxWriteRetries {
			return nil, "", fmt.Errorf("ingest %s/%s: %w", a.Resource, a.Event, store.ErrConflict)
		}
		s.logger.Debug("write conflict, reclassifying",
			"resource", a.Resource, "event", a.Event, "attempt", attempt+1)
	}

	s.afterWrite(ctx, stored, string(outcome))

	metrics.AlertsReceivedTotal.WithLabelValues(stored.Environment, string(outcome)).Inc()
	metrics.ReceiveLatency.Observe(time.Since(start).Seconds())

	s.logger.Debug("alert received",
		"id", stored.ID,
		"resource", stored.Resource,
		"event", stored.Event,
		"severity", stored.Severity,
		"status", stored.Status,
		"outcome", outcome,
	)
	return stored, outcome, nil
}

// classifyAndWrite runs the matcher and exactly one write branch.
// The duplicate check is attempted first; correlation only if not a
// duplicate; otherwise the event opens a new problem.
func (s *Service) classifyAndWrite(ctx context.Context, a *domain.Alert, suppressed bool, now time.Time) (*domain.Alert, Outcome, error) {
	existing, err := s.repo.FindDuplicate(ctx, a)
	if err != nil {
		return nil, "", fmt.Errorf("duplicate lookup: %w", err)
	}
	if existing != nil {
		stored, err := s.dedup(ctx, existing, a, suppressed, now)
		return stored, OutcomeDuplicate, err
	}

	existing, err = s.repo.FindCorrelated(ctx, a)
	if err != nil {
		return nil, "", fmt.Errorf("correlation lookup: %w", err)
	}
	if existing != nil {
		stored, err := s.correlate(ctx, existing, a, suppressed, now)
		return stored, OutcomeCorrelated, err
	}

	stored, err := s.create(ctx, a, suppressed, now)
	return stored, OutcomeCreated, err
}

// create opens a new problem record.
func (s *Service) create(ctx context.Context, a *domain.Alert, suppressed bool, now time.Time) (*domain.Alert, error) {
	rec := a.Clone()
	rec.DuplicateCount = 0
	rec.Repeat = false
	rec.PreviousSeverity = domain.DefaultPreviousSeverity
	rec.TrendIndication = domain.TrendOf(rec.PreviousSeverity, rec.Severity)

	severity, status, err := s.machine.Transition(lifecycle.Input{
		Severity:         rec.Severity,
		PreviousSeverity: rec.PreviousSeverity,
		Requested:        a.Status,
	})
	if err != nil {
		return nil, err
	}
	rec.Severity = severity
	rec.Status = status
	if suppressed {
		rec.Status = domain.StatusBlackout
	}

	rec.ReceiveTime = now
	rec.LastReceiveTime = now
	rec.LastReceiveID = rec.ID
	rec.UpdateTime = now

	entries := []domain.HistoryEntry{{
		ID:         rec.ID,
		Event:      rec.Event,
		Severity:   rec.Severity,
		Value:      rec.Value,
		Text:       rec.Text,
		Type:       domain.ChangeSeverity,
		UpdateTime: now,
	}}
	if rec.Status != domain.DefaultStatus {
		entries = append(entries, domain.HistoryEntry{
			ID:         rec.ID,
			Event:      rec.Event,
			Status:     rec.Status,
			Text:       "new alert status change",
			Type:       domain.ChangeStatus,
			UpdateTime: now,
		})
	}
	rec.History = domain.AppendHistory(nil, s.cfg.HistoryLimit, entries...)

	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	metrics.StatusTransitionsTotal.WithLabelValues(string(domain.DefaultStatus), string(stored.Status)).Inc()
	return stored, nil
}

// dedup applies an exact duplicate to an existing alert. The severity is
// unchanged by definition and a repeat without an explicit status carries no
// state change, so open, assign, ack and shelved records keep their status.
// PreviousSeverity is untouched on this branch.
func (s *Service) dedup(ctx context.Context, existing, a *domain.Alert, suppressed bool, now time.Time) (*domain.Alert, error) {
	rec := existing.Clone()
	rec.Value = a.Value
	rec.Text = a.Text
	rec.Timeout = a.Timeout
	if a.Origin != "" {
		rec.Origin = a.Origin
	}
	rec.DuplicateCount++
	rec.Repeat = true
	rec.MergeTags(a.Tags)
	rec.MergeAttributes(a.Attributes)
	rec.LastReceiveID = a.ID
	rec.LastReceiveTime = now
	rec.UpdateTime = now

	status := rec.Status
	switch {
	case suppressed:
		status = domain.StatusBlackout
	case rec.Status == domain.StatusBlackout || rec.Status == domain.StatusExpired || a.Status != "":
		// Only an ended blackout, an expired record or an explicit status
		// carried on the write can move a duplicate; everything else keeps
		// its status unchanged.
		_, next, err := s.machine.Transition(lifecycle.Input{
			Severity:         rec.Severity,
			PreviousSeverity: rec.PreviousSeverity,
			Status:           rec.Status,
			PreviousStatus:   rec.PreviousStatus,
			Requested:        a.Status,
		})
		if err != nil {
			return nil, err
		}
		status = next
	}

	if status != rec.Status {
		entry := domain.HistoryEntry{
			ID:         a.ID,
			Event:      rec.Event,
			Status:     status,
			Text:       "duplicate status change",
			Type:       domain.ChangeStatus,
			UpdateTime: now,
		}
		rec.History = domain.AppendHistory(rec.History, s.cfg.HistoryLimit, entry)
		metrics.StatusTransitionsTotal.WithLabelValues(string(rec.Status), string(status)).Inc()
		rec.PreviousStatus = rec.Status
		rec.Status = status
	}

	return s.repo.Update(ctx, existing, rec)
}

// correlate applies a related event to an existing alert: the problem keeps
// its identity but takes on the incoming event name and severity.
func (s *Service) correlate(ctx context.Context, existing, a *domain.Alert, suppressed bool, now time.Time) (*domain.Alert, error) {
	rec := existing.Clone()
	previousSeverity := existing.Severity
	previousStatus := existing.Status

	rec.Event = a.Event
	rec.Severity = a.Severity
	rec.Value = a.Value
	rec.Text = a.Text
	rec.Timeout = a.Timeout
	rec.CreateTime = a.CreateTime
	if a.Origin != "" {
		rec.Origin = a.Origin
	}
	if len(a.Correlate) > 0 {
		rec.Correlate = append([]string(nil), a.Correlate...)
	}
	rec.DuplicateCount = 0
	rec.Repeat = false
	rec.PreviousSeverity = previousSeverity
	rec.TrendIndication = domain.TrendOf(previousSeverity, a.Severity)
	rec.MergeTags(a.Tags)
	rec.MergeAttributes(a.Attributes)
	rec.LastReceiveID = a.ID
	rec.LastReceiveTime = now
	rec.UpdateTime = now

	severity, status, err := s.machine.Transition(lifecycle.Input{
		Severity:         a.Severity,
		PreviousSeverity: previousSeverity,
		Status:           previousStatus,
		PreviousStatus:   existing.PreviousStatus,
		Requested:        a.Status,
	})
	if err != nil {
		return nil, err
	}
	rec.Severity = severity
	if suppressed {
		status = domain.StatusBlackout
	}

	entries := []domain.HistoryEntry{{
		ID:         a.ID,
		Event:      rec.Event,
		Severity:   rec.Severity,
		Value:      rec.Value,
		Text:       rec.Text,
		Type:       domain.ChangeSeverity,
		UpdateTime: now,
	}}
	if status != previousStatus {
		entries = append(entries, domain.HistoryEntry{
			ID:         a.ID,
			Event:      rec.Event,
			Status:     status,
			Text:       "correlated status change",
			Type:       domain.ChangeStatus,
			UpdateTime: now,
		})
		metrics.StatusTransitionsTotal.WithLabelValues(string(previousStatus), string(status)).Inc()
		rec.PreviousStatus = previousStatus
	}
	rec.Status = status
	rec.History = domain.AppendHistory(existing.History, s.cfg.HistoryLimit, entries...)

	return s.repo.Update(ctx, existing, rec)
}

// Action applies an explicit operator or housekeeping action to an alert
// located by full id or unique short-id prefix. The matcher is bypassed
// entirely. An action the state machine refuses leaves the alert untouched.
func (s *Service) Action(ctx context.Context, id string, action domain.Action, text string, timeout *int) (*domain.Alert, error) {
	for attempt := 0; ; attempt++ {
		rec, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrAlertNotFound) {
				metrics.ActionsTotal.WithLabelValues(string(action), "not_found").Inc()
			} else {
				metrics.ActionsTotal.WithLabelValues(string(action), "error").Inc()
			}
			return nil, err
		}

		severity, status, err := s.machine.Transition(lifecycle.Input{
			Severity:         rec.Severity,
			PreviousSeverity: rec.PreviousSeverity,
			Status:           rec.Status,
			PreviousStatus:   rec.PreviousStatus,
			Action:           action,
		})
		if err != nil {
			metrics.ActionsTotal.WithLabelValues(string(action), "invalid").Inc()
			return nil, err
		}

		now := time.Now().UTC()
		updated := rec.Clone()
		if timeout != nil {
			updated.Timeout = *timeout
		}
		if severity != rec.Severity {
			updated.PreviousSeverity = rec.Severity
			updated.Severity = severity
			updated.TrendIndication = domain.TrendOf(rec.Severity, severity)
		}

		entries := []domain.HistoryEntry{{
			ID:         rec.ID,
			Event:      rec.Event,
			Severity:   updated.Severity,
			Status:     status,
			Text:       text,
			Type:       domain.ChangeAction,
			UpdateTime: now,
		}}
		if status != rec.Status {
			updated.PreviousStatus = rec.Status
			updated.Status = status
			entries = append(entries, domain.HistoryEntry{
				ID:         rec.ID,
				Event:      rec.Event,
				Status:     status,
				Text:       text,
				Type:       domain.ChangeStatus,
				UpdateTime: now,
			})
			metrics.StatusTransitionsTotal.WithLabelValues(string(rec.Status), string(status)).Inc()
		}
		updated.History = domain.AppendHistory(rec.History, s.cfg.HistoryLimit, entries...)
		updated.UpdateTime = now

		stored, err := s.repo.Update(ctx, rec, updated)
		if err == nil {
			metrics.ActionsTotal.WithLabelValues(string(action), "ok").Inc()
			s.afterWrite(ctx, stored, "action")
			return stored, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			metrics.ActionsTotal.WithLabelValues(string(action), "error").Inc()
			return nil, err
		}
		metrics.WriteConflictsTotal.Inc()
		if attempt+1 >= s.cfg.MaxWriteRetries {
			metrics.ActionsTotal.WithLabelValues(string(action), "error").Inc()
			return nil, fmt.Errorf("action %s on %s: %w", action, id, store.ErrConflict)
		}
	}
}

// Get retrieves an alert by full id or unique short-id prefix.
func (s *Service) Get(ctx context.Context, id string) (*domain.Alert, error) {
	return s.repo.FindByID(ctx, id)
}

// List retrieves alerts matching the filter.
func (s *Service) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes an alert permanently. Only an explicit delete removes a
// record; expiry merely changes status.
func (s *Service) Delete(ctx context.Context, id string) error {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, rec.ID)
}

// afterWrite runs the post-receive hooks and publishes to the outbound
// stream. Failures here are reported but never undo the committed write.
func (s *Service) afterWrite(ctx context.Context, stored *domain.Alert, outcome string) {
	for _, h := range s.hooks {
		if err := h.PostReceive(ctx, stored); err != nil {
			s.logger.Warn("post-receive hook failed", "id", stored.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, stored, outcome); err != nil {
			s.logger.Warn("failed to publish alert", "id", stored.ID, "error", err)
		}
	}
}
