package events

import (
	"context"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// Channel Redis канал, в который дублируются события склада
const Channel = "inventory:events"

// RedisPublisher публикует события в Redis Pub/Sub для других инстансов
type RedisPublisher struct {
	redis *utils.RedisClient
}

func NewRedisPublisher(redis *utils.RedisClient) *RedisPublisher {
	return &RedisPublisher{redis: redis}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	return p.redis.Publish(ctx, Channel, e)
}
