package changes

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// Redis publishes change signals on a Redis channel per collection so that
// every replica sharing the store re-reads after any replica writes.
type Redis struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
	local  *Local
}

func NewRedis(rdb *redis.Client, prefix string, logger *slog.Logger) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "salonbook:changes"
	}
	return &Redis{rdb: rdb, prefix: prefix, logger: logger, local: NewLocal()}
}

func (r *Redis) channel(c model.Collection) string {
	return r.prefix + ":" + string(c)
}

func (r *Redis) Publish(ctx context.Context, c model.Collection) error {
	return r.rdb.Publish(ctx, r.channel(c), time.Now().UTC().Format(time.RFC3339Nano)).Err()
}

func (r *Redis) Subscribe(c model.Collection, onChange func()) func() {
	return r.local.Subscribe(c, onChange)
}

// Run relays Redis messages to local subscribers until ctx is done,
// reconnecting with a short backoff when the subscription drops.
func (r *Redis) Run(ctx context.Context) {
	for {
		if err := r.relay(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("redis change subscription dropped", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (r *Redis) relay(ctx context.Context) error {
	pubsub := r.rdb.PSubscribe(ctx, r.prefix+":*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c, ok := model.ParseCollection(strings.TrimPrefix(msg.Channel, r.prefix+":"))
			if !ok {
				continue
			}
			r.local.dispatch(c)
		}
	}
}

// ReadyCheck pings Redis.
func (r *Redis) ReadyCheck(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
