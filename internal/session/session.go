package session

import (
	"context"
	"time"
)

// Message is one outbound frame queued for a session. For triggered
// subscriptions Data is a serialized TriggeredSubscription.
type Message struct {
	Event string `json:"event"` // message event, e.g. "triggered", "close"
	Data  []byte `json:"data"`  // payload
}

// Meta holds immutable metadata about a session connection. The session key
// is supplied by the transport layer and is opaque to the engine.
type Meta struct {
	Key        string    `json:"key"`                  // opaque session key
	CreatedAt  time.Time `json:"created_at"`           // timestamp of connection registration
	Transport  string    `json:"transport"`            // connection kind, e.g. "websocket", "sse"
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// Connection is an active session connection capable of receiving queued
// deliveries. The transport layer drains EventQueue and writes each message
// to the wire.
type Connection interface {
	// EventQueue returns a read-only channel where outbound messages are published.
	EventQueue() <-chan *Message

	// Send pushes a message to the session.
	Send(ctx context.Context, msg *Message) error

	// Close terminates the session connection.
	Close(ctx context.Context) error

	// Meta returns metadata associated with the session.
	Meta() *Meta
}

// Store manages the lifecycle and lookup of active session connections.
type Store interface {
	// Register creates and registers a new session connection.
	Register(ctx context.Context, meta *Meta) (Connection, error)

	// Get retrieves an active session connection by session key.
	Get(ctx context.Context, sessionKey string) (Connection, error)

	// Unregister removes a session connection by session key.
	Unregister(ctx context.Context, sessionKey string) error

	// List returns all currently active session connections.
	List(ctx context.Context) ([]Connection, error)
}
