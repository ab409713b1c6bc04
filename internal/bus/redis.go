package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orbcast/orbcast/internal/common/cnst"
	"github.com/orbcast/orbcast/internal/common/config"
	"github.com/orbcast/orbcast/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const streamMaxLen = 1024

// RedisBus implements Bus on a Redis stream so that events emitted on any
// platform node reach every gateway node. Each node reads from the latest
// position independently; the bus provides no replay after a restart.
type RedisBus struct {
	logger *zap.Logger
	client redis.UniversalClient
	stream string
	role   config.BusRole
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus creates a new Redis-stream event bus.
func NewRedisBus(logger *zap.Logger, cfg config.BusRedisConfig, role config.BusRole) (*RedisBus, error) {
	addrs := utils.SplitByMultipleDelimiters(cfg.Addr, ";", ",")
	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		redisOptions.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		redisOptions.DB = cfg.DB
	}
	client := redis.NewUniversalClient(redisOptions)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBus{
		logger: logger.Named("bus.redis"),
		client: client,
		stream: cfg.Stream,
		role:   role,
	}, nil
}

// Publish implements Bus.Publish
func (b *RedisBus) Publish(ctx context.Context, pub *PublishedEvent) error {
	if !b.CanPublish() {
		return cnst.ErrNotPublisher
	}

	data, err := encodeEnvelope(pub)
	if err != nil {
		return err
	}

	_, err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"envelope":  string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add event to stream: %w", err)
	}
	return nil
}

// Watch implements Bus.Watch
func (b *RedisBus) Watch(ctx context.Context) (<-chan *PublishedEvent, error) {
	if !b.CanSubscribe() {
		return nil, cnst.ErrNotSubscriber
	}

	ch := make(chan *PublishedEvent, 64)

	go func() {
		defer close(ch)

		// Start from the latest message ($ means read only new messages)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
				// XREAD so every node observes every event independently
				streams, err := b.client.XRead(ctx, &redis.XReadArgs{
					Streams: []string{b.stream, lastID},
					Count:   16,
					Block:   1 * time.Second,
				}).Result()

				if err != nil {
					if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
						b.logger.Error("failed to read from stream", zap.Error(err))
					}
					continue
				}

				for _, stream := range streams {
					for _, message := range stream.Messages {
						lastID = message.ID

						raw, exists := message.Values["envelope"]
						if !exists {
							continue
						}
						pub, err := decodeEnvelope([]byte(raw.(string)))
						if err != nil {
							b.logger.Error("failed to decode event envelope",
								zap.String("messageID", message.ID),
								zap.Error(err))
							continue
						}

						select {
						case ch <- pub:
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()

	return ch, nil
}

// CanPublish implements Bus.CanPublish
func (b *RedisBus) CanPublish() bool {
	return b.role == config.RolePublisher || b.role == config.RoleBoth
}

// CanSubscribe implements Bus.CanSubscribe
func (b *RedisBus) CanSubscribe() bool {
	return b.role == config.RoleSubscriber || b.role == config.RoleBoth
}

// Close closes the underlying Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
