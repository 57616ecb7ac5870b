package notify

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	corenotify "github.com/kilianp07/fleetassign/core/notify"
)

// RedisConfig configures the Redis pub/sub notifier.
type RedisConfig struct {
	URL    string `json:"url"`
	Prefix string `json:"prefix"`
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes notifications as JSON on "<prefix>:<recipient>".
type RedisNotifier struct {
	rdb    redisPublisher
	closer func() error
	prefix string
}

// NewRedisNotifier connects to the Redis server described by cfg.URL.
func NewRedisNotifier(cfg RedisConfig) (*RedisNotifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis notifier: url is required")
	}
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	return newRedisNotifier(rdb, rdb.Close, cfg.Prefix), nil
}

func newRedisNotifier(rdb redisPublisher, closer func() error, prefix string) *RedisNotifier {
	if prefix == "" {
		prefix = "notify"
	}
	return &RedisNotifier{rdb: rdb, closer: closer, prefix: prefix}
}

// Channel returns the pub/sub channel of a recipient.
func (r *RedisNotifier) Channel(recipient string) string { return r.prefix + ":" + recipient }

func (r *RedisNotifier) Notify(ctx context.Context, n corenotify.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.Channel(n.Recipient), data).Err()
}

// Close releases the connection pool.
func (r *RedisNotifier) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
