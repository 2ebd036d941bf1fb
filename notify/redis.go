package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/warp/bankroll/bankroll"
)

const (
	// Channel carries every notification for live listeners.
	Channel   = "bankroll:notifications"
	keyPrefix = "bankroll:notifications:"
)

// Redis stores notifications in a list per recipient and publishes them.
type Redis struct {
	client *redis.Client
	limit  int64
}

// NewRedis trims each recipient list to limit entries (0 = unbounded).
func NewRedis(client *redis.Client, limit int64) *Redis {
	return &Redis{client: client, limit: limit}
}

func inboxKey(recipient bankroll.Token) string {
	return keyPrefix + string(recipient)
}

func (r *Redis) Notify(ctx context.Context, n bankroll.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	key := inboxKey(n.Recipient)
	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to queue notification: %w", err)
	}
	if r.limit > 0 {
		if err := r.client.LTrim(ctx, key, -r.limit, -1).Err(); err != nil {
			return fmt.Errorf("failed to trim inbox: %w", err)
		}
	}
	return r.client.Publish(ctx, Channel, data).Err()
}

func (r *Redis) Inbox(ctx context.Context, recipient bankroll.Token) ([]bankroll.Notification, error) {
	raw, err := r.client.LRange(ctx, inboxKey(recipient), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	out := make([]bankroll.Notification, 0, len(raw))
	for _, item := range raw {
		var n bankroll.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}
