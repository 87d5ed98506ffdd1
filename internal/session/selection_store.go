// Package session provides redis-backed per-viewer console state: the
// payment selection set and the bulk-operation in-flight lock.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/dealerdesk/be-payment-approvals/internal/errors"
)

// SelectionStore keeps each viewer's selected payment ids and a mutual
// exclusion lock held while a bulk operation is in flight. The lock carries a
// TTL so a hung bulk request cannot wedge the session.
type SelectionStore struct {
	client *redis.Client
}

// NewSelectionStore connects to redis at the given URL.
func NewSelectionStore(redisURL string) (*SelectionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &SelectionStore{client: client}, nil
}

// NewSelectionStoreWithClient creates a store from an existing redis client.
func NewSelectionStoreWithClient(client *redis.Client) *SelectionStore {
	return &SelectionStore{client: client}
}

func selectionKey(userID string) string { return "selection:" + userID }
func lockKey(userID string) string      { return "bulklock:" + userID }

// Toggle adds the payment id to the viewer's selection, or removes it when
// already present. Returns true when the id is selected after the call.
func (s *SelectionStore) Toggle(ctx context.Context, userID, paymentID string) (bool, error) {
	key := selectionKey(userID)
	removed, err := s.client.SRem(ctx, key, paymentID).Result()
	if err != nil {
		return false, fmt.Errorf("toggle selection: %w", err)
	}
	if removed > 0 {
		return false, nil
	}
	if err := s.client.SAdd(ctx, key, paymentID).Err(); err != nil {
		return false, fmt.Errorf("toggle selection: %w", err)
	}
	return true, nil
}

// Members returns the viewer's current selection.
func (s *SelectionStore) Members(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, selectionKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	return ids, nil
}

// Clear drops the viewer's entire selection.
func (s *SelectionStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, selectionKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}

// AcquireBulkLock takes the viewer's bulk in-flight lock. Returns a conflict
// error when a bulk operation is already running for this viewer.
func (s *SelectionStore) AcquireBulkLock(ctx context.Context, userID string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, lockKey(userID), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire bulk lock: %w", err)
	}
	if !ok {
		return apperrors.New(apperrors.ErrCodeConflict, "a bulk operation is already in progress")
	}
	return nil
}

// ReleaseBulkLock releases the viewer's bulk in-flight lock. Safe to call
// when the lock already expired.
func (s *SelectionStore) ReleaseBulkLock(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, lockKey(userID)).Err(); err != nil {
		return fmt.Errorf("release bulk lock: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (s *SelectionStore) Close() error {
	return s.client.Close()
}

// Ping checks redis reachability.
func (s *SelectionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
