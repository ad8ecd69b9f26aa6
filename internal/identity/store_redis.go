// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kant2002/SimpleIdentity/internal/platform/constants"
)

// Key suffixes under the session prefix. Deadlines are stored as RFC 3339
// strings so the keys stay human-readable in redis-cli.
const (
	sessionFieldAttempts = "failed_attempts"
	sessionFieldDeadline = "lockout_deadline"
)

// RedisSessionStore implements [SessionStore] using Redis.
//
// # Expiry
//
// Every write refreshes the TTL on both keys, so lockout state lives exactly
// as long as the idle session that owns it and disappears with it.
type RedisSessionStore struct {
	client      *redis.Client
	idleTimeout time.Duration
}

// NewRedisSessionStore creates a new Redis-backed SessionStore.
func NewRedisSessionStore(client *redis.Client, idleTimeout time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, idleTimeout: idleTimeout}
}

// key builds the Redis key for one session field.
func (store *RedisSessionStore) key(sessionID, field string) string {
	return fmt.Sprintf("%s%s:%s", constants.RedisPrefixSession, sessionID, field)
}

/*
GetFailedAttempts returns the session's failure counter.

Description: An absent key reads as zero; expired sessions start clean.

Parameters:
  - ctx: context.Context
  - sessionID: string

Returns:
  - int: Current counter value
  - error: Connectivity errors
*/
func (store *RedisSessionStore) GetFailedAttempts(ctx context.Context, sessionID string) (int, error) {

	// Fetch the counter
	value, err := store.client.Get(ctx, store.key(sessionID, sessionFieldAttempts)).Result()

	// Absent key means no failures recorded
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis_session_get_attempts_failed: %w", err)
	}

	// Parse the stored integer
	count, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("redis_session_parse_attempts_failed: %w", err)
	}

	return count, nil
}

/*
SetFailedAttempts stores the failure counter and refreshes the session TTL.

Parameters:
  - ctx: context.Context
  - sessionID: string
  - count: int

Returns:
  - error: Storage failures
*/
func (store *RedisSessionStore) SetFailedAttempts(ctx context.Context, sessionID string, count int) error {

	// Store the counter with the idle-session TTL
	key := store.key(sessionID, sessionFieldAttempts)
	if err := store.client.Set(ctx, key, strconv.Itoa(count), store.idleTimeout).Err(); err != nil {
		return fmt.Errorf("redis_session_set_attempts_failed: %w", err)
	}

	return nil
}

/*
GetLockoutDeadline returns the session's lockout deadline.

Description: An absent key reads as the zero time, meaning no lock was placed.

Parameters:
  - ctx: context.Context
  - sessionID: string

Returns:
  - time.Time: The deadline, or the zero value
  - error: Connectivity or parse errors
*/
func (store *RedisSessionStore) GetLockoutDeadline(ctx context.Context, sessionID string) (time.Time, error) {

	// Fetch the stored deadline
	value, err := store.client.Get(ctx, store.key(sessionID, sessionFieldDeadline)).Result()

	// Absent or empty means no lock has been placed
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("redis_session_get_deadline_failed: %w", err)
	}
	if value == "" {
		return time.Time{}, nil
	}

	// Parse the RFC 3339 representation
	deadline, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis_session_parse_deadline_failed: %w", err)
	}

	return deadline, nil
}

/*
SetLockoutDeadline stores the lockout deadline and refreshes the session TTL.

Description: The zero time is stored as an empty string so clearing a lock
does not require a separate delete path.

Parameters:
  - ctx: context.Context
  - sessionID: string
  - deadline: time.Time

Returns:
  - error: Storage failures
*/
func (store *RedisSessionStore) SetLockoutDeadline(ctx context.Context, sessionID string, deadline time.Time) error {

	// Serialize the deadline
	value := ""
	if !deadline.IsZero() {
		value = deadline.Format(time.RFC3339Nano)
	}

	// Store it with the idle-session TTL
	key := store.key(sessionID, sessionFieldDeadline)
	if err := store.client.Set(ctx, key, value, store.idleTimeout).Err(); err != nil {
		return fmt.Errorf("redis_session_set_deadline_failed: %w", err)
	}

	return nil
}

/*
Clear removes all lockout state for the session.

Parameters:
  - ctx: context.Context
  - sessionID: string

Returns:
  - error: Deletion failures
*/
func (store *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {

	// Delete both fields in one round trip
	err := store.client.Del(ctx,
		store.key(sessionID, sessionFieldAttempts),
		store.key(sessionID, sessionFieldDeadline),
	).Err()

	if err != nil {
		return fmt.Errorf("redis_session_clear_failed: %w", err)
	}

	return nil
}
