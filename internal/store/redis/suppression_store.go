// Package redis provides the Redis-backed suppression store. Blackout
// windows are ephemeral by nature, so each key carries a TTL to its end time
// and Redis expires it without any sweeping on our side.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil-go/internal/config"
	"vigil-go/internal/domain"
)

const keyPrefix = "suppression:"

// SuppressionStore is the Redis implementation of store.SuppressionStore.
type SuppressionStore struct {
	client *redis.Client
}

// NewSuppressionStore creates a Redis-backed suppression store.
func NewSuppressionStore(ctx context.Context, cfg *config.RedisConfig) (*SuppressionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &SuppressionStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *SuppressionStore) Close() error {
	return s.client.Close()
}

// Create stores a suppression window with a TTL to its end time.
func (s *SuppressionStore) Create(ctx context.Context, suppression *domain.Suppression) error {
	data, err := json.Marshal(suppression)
	if err != nil {
		return fmt.Errorf("failed to marshal suppression: %w", err)
	}

	ttl := time.Until(suppression.EndTime)
	if ttl <= 0 {
		return domain.ErrSuppressionWindow
	}

	if err := s.client.Set(ctx, keyPrefix+suppression.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store suppression: %w", err)
	}
	return nil
}

// Delete removes a suppression window by id.
func (s *SuppressionStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete suppression: %w", err)
	}
	if deleted == 0 {
		return domain.ErrSuppressionNotFound
	}
	return nil
}

// Get retrieves a suppression window by id.
func (s *SuppressionStore) Get(ctx context.Context, id string) (*domain.Suppression, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSuppressionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suppression: %w", err)
	}

	var suppression domain.Suppression
	if err := json.Unmarshal(data, &suppression); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suppression: %w", err)
	}
	return &suppression, nil
}

// List returns all windows active at or after the given time.
func (s *SuppressionStore) List(ctx context.Context, at time.Time) ([]*domain.Suppression, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	var suppressions []*domain.Suppression
	for _, suppression := range all {
		if suppression.EndTime.After(at) {
			suppressions = append(suppressions, suppression)
		}
	}
	return suppressions, nil
}

// Active reports whether the alert falls inside any window covering the given
// instant. All windows suppress the same way, so a single match settles it.
func (s *SuppressionStore) Active(ctx context.Context, alert *domain.Alert, at time.Time) (bool, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return false, err
	}

	for _, suppression := range all {
		if suppression.Matches(alert, at) {
			return true, nil
		}
	}
	return false, nil
}

// scan iterates all suppression keys. Window counts are small, so a full
// SCAN per lookup is acceptable.
func (s *SuppressionStore) scan(ctx context.Context) ([]*domain.Suppression, error) {
	var suppressions []*domain.Suppression

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			// Expired between SCAN and GET.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get suppression: %w", err)
		}

		var suppression domain.Suppression
		if err := json.Unmarshal(data, &suppression); err != nil {
			return nil, fmt.Errorf("failed to unmarshal suppression: %w", err)
		}
		suppressions = append(suppressions, &suppression)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan suppressions: %w", err)
	}
	return suppressions, nil
}
