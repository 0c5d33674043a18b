// Package presence mirrors user online status into Redis so the rest of the
// platform can query who is reachable without touching the connection
// registry. The mirror is advisory: failures are logged by callers and never
// affect the connection path.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker records online/offline transitions for a user.
type Tracker interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

const (
	onlineSetKey = "online_users"

	onlineStatusTTL  = 5 * time.Minute
	offlineStatusTTL = 24 * time.Hour
)

func statusKey(userID string) string {
	return fmt.Sprintf("user:%s:status", userID)
}

// RedisTracker keeps an online-users set plus a per-user status hash with a
// TTL, so a crashed process cannot leave users marked online forever.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) SetOnline(ctx context.Context, userID string) error {
	now := time.Now().Unix()

	pipe := t.client.Pipeline()
	pipe.SAdd(ctx, onlineSetKey, userID)
	pipe.HSet(ctx, statusKey(userID), map[string]interface{}{
		"status":     "online",
		"last_seen":  now,
		"updated_at": now,
	})
	pipe.Expire(ctx, statusKey(userID), onlineStatusTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	return nil
}

func (t *RedisTracker) SetOffline(ctx context.Context, userID string) error {
	now := time.Now().Unix()

	pipe := t.client.Pipeline()
	pipe.SRem(ctx, onlineSetKey, userID)
	pipe.HSet(ctx, statusKey(userID), map[string]interface{}{
		"status":     "offline",
		"last_seen":  now,
		"updated_at": now,
	})
	pipe.Expire(ctx, statusKey(userID), offlineStatusTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set user offline: %w", err)
	}
	return nil
}

func (t *RedisTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	return t.client.SIsMember(ctx, onlineSetKey, userID).Result()
}

// OnlineUsers lists the user IDs currently marked online.
func (t *RedisTracker) OnlineUsers(ctx context.Context) ([]string, error) {
	return t.client.SMembers(ctx, onlineSetKey).Result()
}

// Noop is used when no Redis is configured; the subsystem works without the
// mirror.
type Noop struct{}

func (Noop) SetOnline(context.Context, string) error  { return nil }
func (Noop) SetOffline(context.Context, string) error { return nil }
func (Noop) IsOnline(context.Context, string) (bool, error) {
	return false, nil
}
