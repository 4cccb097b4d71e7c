package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss возвращается GetJSON, если ключа нет
var ErrCacheMiss = errors.New("cache miss")

// RedisClient обертка над Redis клиентом для кэша, блокировок и Pub/Sub
type RedisClient struct {
	client *redis.Client
	locker *redislock.Client
}

// NewRedisClient создает новый Redis клиент
func NewRedisClient(client *redis.Client) *RedisClient {
	return &RedisClient{
		client: client,
		locker: redislock.New(client),
	}
}

// Client возвращает исходный go-redis клиент
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// SetJSON сохраняет значение в JSON с TTL
func (r *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var data string
	switch v := value.(type) {
	case string:
		data = v
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return err
		}
		data = string(jsonData)
	}

	return r.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON получает и парсит JSON значение
func (r *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Delete удаляет ключи
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Publish публикует сообщение в канал (JSON для не-строк)
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	var data string
	switch v := message.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(message)
		if err != nil {
			return err
		}
		data = string(jsonData)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe подписывается на каналы
func (r *RedisClient) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return r.client.Subscribe(ctx, channels...)
}

// Obtain берет распределенную блокировку на ttl.
// redislock.ErrNotObtained означает, что блокировка уже занята.
func (r *RedisClient) Obtain(ctx context.Context, key string, ttl time.Duration) (*redislock.Lock, error) {
	return r.locker.Obtain(ctx, key, ttl, nil)
}
