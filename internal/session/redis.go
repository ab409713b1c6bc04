package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/orbcast/orbcast/internal/common/cnst"
	"github.com/orbcast/orbcast/internal/common/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store on Redis so that session metadata is visible
// across gateway nodes and a delivery produced on one node reaches a session
// connected to another. Deliveries to remote sessions travel over a pub/sub
// topic; each node enqueues only the messages addressed to its local
// connections.
type RedisStore struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
	topic  string
	pubsub *redis.PubSub

	mu    sync.RWMutex
	conns map[string]*RedisConnection
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(logger *zap.Logger, cfg config.SessionRedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "session"
	}
	store := &RedisStore{
		logger: logger.Named("session.store.redis"),
		client: client,
		prefix: prefix + ":",
		topic:  cfg.Topic,
		conns:  make(map[string]*RedisConnection),
	}

	// Subscribe to cross-node session deliveries
	store.pubsub = client.Subscribe(context.Background(), cfg.Topic)
	go store.handleDeliveries()

	return store, nil
}

type sessionUpdate struct {
	Action  string   `json:"action"` // "create", "delete", "deliver"
	Meta    *Meta    `json:"meta"`
	Message *Message `json:"message,omitempty"`
}

// handleDeliveries consumes the pub/sub topic and routes "deliver" updates
// to local connection queues.
func (s *RedisStore) handleDeliveries() {
	ch := s.pubsub.Channel()
	for msg := range ch {
		var update sessionUpdate
		if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
			s.logger.Error("failed to unmarshal session update",
				zap.Error(err),
				zap.String("payload", msg.Payload))
			continue
		}

		if update.Action != "deliver" {
			continue
		}

		s.mu.RLock()
		conn, exists := s.conns[update.Meta.Key]
		s.mu.RUnlock()
		if !exists {
			// Addressed to a session on another node
			continue
		}

		select {
		case conn.queue <- update.Message:
		default:
			s.logger.Warn("connection queue is full, dropping message",
				zap.String("sessionKey", update.Meta.Key),
				zap.String("event", update.Message.Event))
		}
	}
}

// publishUpdate publishes a session update to the topic.
func (s *RedisStore) publishUpdate(ctx context.Context, action string, meta *Meta, msg *Message) error {
	data, err := json.Marshal(sessionUpdate{Action: action, Meta: meta, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal session update: %w", err)
	}
	return s.client.Publish(ctx, s.topic, data).Err()
}

// Register implements Store.Register
func (s *RedisStore) Register(ctx context.Context, meta *Meta) (Connection, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	key := s.prefix + meta.Key
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session metadata in Redis: %w", err)
	}
	if err := s.client.SAdd(ctx, s.prefix+"keys", meta.Key).Err(); err != nil {
		return nil, fmt.Errorf("failed to add session key to set: %w", err)
	}

	conn := &RedisConnection{
		store: s,
		meta:  meta,
		queue: make(chan *Message, queueSize),
	}

	s.mu.Lock()
	s.conns[meta.Key] = conn
	s.mu.Unlock()

	if err := s.publishUpdate(ctx, "create", meta, nil); err != nil {
		return nil, fmt.Errorf("failed to publish session creation: %w", err)
	}

	return conn, nil
}

// Get implements Store.Get
func (s *RedisStore) Get(ctx context.Context, sessionKey string) (Connection, error) {
	// Local connections keep their live queue
	s.mu.RLock()
	conn, ok := s.conns[sessionKey]
	s.mu.RUnlock()
	if ok {
		return conn, nil
	}

	data, err := s.client.Get(ctx, s.prefix+sessionKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cnst.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session metadata from Redis: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session metadata: %w", err)
	}

	// Remote session: sends are forwarded over the topic
	return &RedisConnection{
		store: s,
		meta:  &meta,
		queue: make(chan *Message, queueSize),
	}, nil
}

// Unregister implements Store.Unregister
func (s *RedisStore) Unregister(ctx context.Context, sessionKey string) error {
	s.mu.Lock()
	delete(s.conns, sessionKey)
	s.mu.Unlock()

	exists, err := s.client.SIsMember(ctx, s.prefix+"keys", sessionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check session key: %w", err)
	}
	if !exists {
		return cnst.ErrSessionNotFound
	}

	if err := s.client.Del(ctx, s.prefix+sessionKey).Err(); err != nil {
		return fmt.Errorf("failed to delete session metadata from Redis: %w", err)
	}
	if err := s.client.SRem(ctx, s.prefix+"keys", sessionKey).Err(); err != nil {
		return fmt.Errorf("failed to remove session key from set: %w", err)
	}

	return s.publishUpdate(ctx, "delete", &Meta{Key: sessionKey}, nil)
}

// List implements Store.List
func (s *RedisStore) List(ctx context.Context) ([]Connection, error) {
	keys, err := s.client.SMembers(ctx, s.prefix+"keys").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session keys: %w", err)
	}

	connections := make([]Connection, 0, len(keys))
	for _, sessionKey := range keys {
		conn, err := s.Get(ctx, sessionKey)
		if err != nil {
			s.logger.Error("failed to get session",
				zap.String("sessionKey", sessionKey),
				zap.Error(err))
			continue
		}
		connections = append(connections, conn)
	}
	return connections, nil
}

// Close closes the Redis store.
func (s *RedisStore) Close() error {
	if s.pubsub != nil {
		if err := s.pubsub.Close(); err != nil {
			return fmt.Errorf("failed to close pubsub: %w", err)
		}
	}
	return s.client.Close()
}

// RedisConnection implements Connection over the Redis store.
type RedisConnection struct {
	store *RedisStore
	meta  *Meta
	queue chan *Message
}

var _ Connection = (*RedisConnection)(nil)

// EventQueue implements Connection.EventQueue
func (c *RedisConnection) EventQueue() <-chan *Message {
	return c.queue
}

// Send implements Connection.Send. The message travels over the pub/sub
// topic so it reaches the node holding the live connection.
func (c *RedisConnection) Send(ctx context.Context, msg *Message) error {
	return c.store.publishUpdate(ctx, "deliver", c.meta, msg)
}

// Close implements Connection.Close
func (c *RedisConnection) Close(ctx context.Context) error {
	return c.store.Unregister(ctx, c.meta.Key)
}

// Meta implements Connection.Meta
func (c *RedisConnection) Meta() *Meta {
	return c.meta
}
