package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/orbcast/orbcast/internal/common/cnst"

	"go.uber.org/zap"
)

const queueSize = 100

// MemoryStore implements Store using in-memory storage.
type MemoryStore struct {
	logger *zap.Logger
	mu     sync.RWMutex
	conns  map[string]Connection
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger: logger.Named("session.store.memory"),
		conns:  make(map[string]Connection),
	}
}

// Register implements Store.Register
func (s *MemoryStore) Register(_ context.Context, meta *Meta) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conns[meta.Key]; exists {
		return nil, fmt.Errorf("connection already exists: %s", meta.Key)
	}

	conn := &MemoryConnection{
		meta:  meta,
		queue: make(chan *Message, queueSize),
	}
	s.conns[meta.Key] = conn

	return conn, nil
}

// Get implements Store.Get
func (s *MemoryStore) Get(_ context.Context, sessionKey string) (Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[sessionKey]
	if !ok {
		return nil, cnst.ErrSessionNotFound
	}
	return conn, nil
}

// Unregister implements Store.Unregister
func (s *MemoryStore) Unregister(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[sessionKey]
	if !ok {
		return cnst.ErrSessionNotFound
	}

	if err := conn.Close(context.Background()); err != nil {
		s.logger.Error("failed to close connection",
			zap.String("sessionKey", sessionKey),
			zap.Error(err))
	}

	delete(s.conns, sessionKey)
	return nil
}

// List implements Store.List
func (s *MemoryStore) List(_ context.Context) ([]Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]Connection, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	return conns, nil
}

// MemoryConnection implements Connection using an in-memory queue.
type MemoryConnection struct {
	meta      *Meta
	queue     chan *Message
	closeOnce sync.Once
}

var _ Connection = (*MemoryConnection)(nil)

// EventQueue implements Connection.EventQueue
func (c *MemoryConnection) EventQueue() <-chan *Message {
	return c.queue
}

// Send implements Connection.Send
func (c *MemoryConnection) Send(_ context.Context, msg *Message) error {
	select {
	case c.queue <- msg:
		return nil
	default:
		return fmt.Errorf("message queue is full")
	}
}

// Close implements Connection.Close
func (c *MemoryConnection) Close(_ context.Context) error {
	c.closeOnce.Do(func() { close(c.queue) })
	return nil
}

// Meta implements Connection.Meta
func (c *MemoryConnection) Meta() *Meta {
	return c.meta
}
