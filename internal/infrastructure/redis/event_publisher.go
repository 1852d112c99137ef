package redis

import (
	"context"
	"encoding/json"

	"auction-lifecycle/internal/domain"

	"github.com/go-redis/redis/v8"
)

const DefaultChannel = "auction_lifecycle_events"

type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisEventPublisher(client *redis.Client, channel string) *RedisEventPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisEventPublisher{client: client, channel: channel}
}

func (r *RedisEventPublisher) PublishLifecycleEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, r.channel, payload).Err()
}
