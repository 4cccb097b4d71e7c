package api

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// FeedRelay читает события склада из Redis Pub/Sub и отправляет их в WebSocket hub.
// Так дашборд, подключенный к любому инстансу, видит изменения со всех инстансов.
type FeedRelay struct {
	redis     *utils.RedisClient
	hub       *Hub
	channel   string
	relayed   int64
	lastLog   int64
	logPeriod time.Duration
}

func NewFeedRelay(redisClient *utils.RedisClient, hub *Hub) *FeedRelay {
	return &FeedRelay{
		redis:     redisClient,
		hub:       hub,
		channel:   events.Channel,
		lastLog:   time.Now().Unix(),
		logPeriod: time.Minute,
	}
}

// Start запускает чтение в отдельной горутине до отмены ctx
func (r *FeedRelay) Start(ctx context.Context) {
	pubsub := r.redis.Subscribe(ctx, r.channel)
	utils.Logger().Infof("📡 feed relay started: channel=%s", r.channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				utils.Logger().Info("🛑 feed relay stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.relay(msg)
			}
		}
	}()
}

func (r *FeedRelay) relay(msg *redis.Message) {
	r.hub.BroadcastMessage([]byte(msg.Payload))
	count := atomic.AddInt64(&r.relayed, 1)

	now := time.Now().Unix()
	last := atomic.LoadInt64(&r.lastLog)
	if now-last >= int64(r.logPeriod.Seconds()) && atomic.CompareAndSwapInt64(&r.lastLog, last, now) {
		utils.Logger().WithField("clients", r.hub.GetClientsCount()).Debugf("📨 feed relay: %d events relayed", count)
	}
}

// Relayed количество переданных событий
func (r *FeedRelay) Relayed() int64 {
	return atomic.LoadInt64(&r.relayed)
}
