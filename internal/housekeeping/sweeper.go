// Package housekeeping runs the periodic sweep that expires stale alerts,
// reverts timed-out shelves and deletes records past retention. It runs
// independently of the ingestion path but mutates the same records, so it
// goes through the engine's atomic write path.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"vigil-go/internal/engine"
)

// Sweeper periodically invokes the engine's housekeeping sweep.
type Sweeper struct {
	engine           *engine.Service
	interval         time.Duration
	expiredRetention time.Duration
	infoRetention    time.Duration
	logger           *slog.Logger
}

// NewSweeper creates a new housekeeping sweeper.
func NewSweeper(
	eng *engine.Service,
	interval time.Duration,
	expiredRetention time.Duration,
	infoRetention time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		engine:           eng,
		interval:         interval,
		expiredRetention: expiredRetention,
		infoRetention:    infoRetention,
		logger:           logger,
	}
}

// Start runs the sweep loop until the context is canceled.
// This is a blocking call.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("starting housekeeping sweeper", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping housekeeping sweeper")
			return ctx.Err()
		case <-ticker.C:
			result, err := s.engine.Housekeeping(ctx, s.expiredRetention, s.infoRetention)
			if err != nil {
				s.logger.Error("housekeeping sweep failed", "error", err)
				continue
			}
			if len(result.ExpiredIDs) > 0 || len(result.UnshelvedIDs) > 0 || len(result.DeletedIDs) > 0 {
				s.logger.Info("housekeeping sweep",
					"expired", len(result.ExpiredIDs),
					"unshelved", len(result.UnshelvedIDs),
					"deleted", len(result.DeletedIDs),
				)
			}
		}
	}
}
