package notify

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"salonbook/backend/internal/domain"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisRealtime publishes live events on the per-user pub/sub channel "user-<id>".
type RedisRealtime struct {
	client redisPublisher
}

func NewRedisRealtime(client redisPublisher) *RedisRealtime {
	return &RedisRealtime{client: client}
}

func UserChannel(userID string) string {
	return "user-" + userID
}

func (r *RedisRealtime) PublishRealtime(ctx context.Context, userID string, ev domain.RealtimeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, UserChannel(userID), payload).Err()
}
