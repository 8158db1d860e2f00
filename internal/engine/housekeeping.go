package engine

import (
	"context"
	"time"

	"vigil-go/internal/domain"
	"vigil-go/internal/metrics"
)

// HousekeepingResult reports what one sweep did.
type HousekeepingResult struct {
	// ExpiredIDs are alerts whose timeout passed and were moved to expired.
	ExpiredIDs []string

	// UnshelvedIDs are shelved alerts reverted on shelve timeout.
	UnshelvedIDs []string

	// DeletedIDs are alerts removed permanently by the retention policy.
	DeletedIDs []string
}

// Housekeeping runs one sweep: expire alerts past their timeout, revert
// shelves past their deadline, and delete resolved alerts older than
// expiredRetention plus informational alerts older than infoRetention.
//
// The sweep reuses the same atomic Action path as operators, so it honors
// the concurrency contract and loses gracefully to concurrent writers: a
// record revived between the query and the action simply fails its
// precondition and is picked up again next interval.
func (s *Service) Housekeeping(ctx context.Context, expiredRetention, infoRetention time.Duration) (*HousekeepingResult, error) {
	start := time.Now()
	now := start.UTC()
	result := &HousekeepingResult{}

	expired, err := s.repo.FindExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, alert := range expired {
		if _, err := s.Action(ctx, alert.ID, domain.ActionExpired, "alert timeout expired", nil); err != nil {
			s.logger.Warn("failed to expire alert", "id", alert.ID, "error", err)
			continue
		}
		result.ExpiredIDs = append(result.ExpiredIDs, alert.ID)
		metrics.HousekeepingExpiredTotal.Inc()
	}

	shelved, err := s.repo.FindByStatus(ctx, domain.StatusShelved)
	if err != nil {
		return nil, err
	}
	for _, alert := range shelved {
		deadline := shelveDeadline(alert)
		if deadline.IsZero() || !deadline.Before(now) {
			continue
		}
		if _, err := s.Action(ctx, alert.ID, domain.ActionTimeout, "shelve timeout", nil); err != nil {
			s.logger.Warn("failed to unshelve alert", "id", alert.ID, "error", err)
			continue
		}
		result.UnshelvedIDs = append(result.UnshelvedIDs, alert.ID)
		metrics.HousekeepingUnshelvedTotal.Inc()
	}

	resolved, err := s.repo.DeleteResolvedBefore(ctx, now.Add(-expiredRetention))
	if err != nil {
		return nil, err
	}
	metrics.HousekeepingDeletedTotal.WithLabelValues("resolved").Add(float64(len(resolved)))
	result.DeletedIDs = append(result.DeletedIDs, resolved...)

	informational, err := s.repo.DeleteInformationalBefore(ctx, now.Add(-infoRetention))
	if err != nil {
		return nil, err
	}
	metrics.HousekeepingDeletedTotal.WithLabelValues("informational").Add(float64(len(informational)))
	result.DeletedIDs = append(result.DeletedIDs, informational...)

	metrics.HousekeepingSweepsTotal.Inc()
	metrics.HousekeepingLatency.Observe(time.Since(start).Seconds())

	s.logger.Debug("housekeeping sweep completed",
		"expired", len(result.ExpiredIDs),
		"unshelved", len(result.UnshelvedIDs),
		"deleted", len(result.DeletedIDs),
	)
	return result, nil
}

// shelveDeadline computes when a shelved alert's shelve times out: the most
// recent shelve action in its history plus the alert's timeout. A zero time
// means the shelve never times out.
func shelveDeadline(alert *domain.Alert) time.Time {
	if alert.Timeout == 0 {
		return time.Time{}
	}
	for i := len(alert.History) - 1; i >= 0; i-- {
		entry := alert.History[i]
		if entry.Type == domain.ChangeAction && entry.Status == domain.StatusShelved {
			return entry.UpdateTime.Add(time.Duration(alert.Timeout) * time.Second)
		}
	}
	return time.Time{}
}
