package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbcast/orbcast/internal/event"
)

// PublishedEvent is one domain event in flight on the bus, together with the
// visibility flag decided by the authorization collaborator at emission time.
type PublishedEvent struct {
	Event                        event.Event
	AccessibleForRestrictedUsers bool
}

// Bus carries domain events between the producers anywhere in the platform
// and the gateway nodes that dispatch them to connected sessions.
type Bus interface {
	// Publish puts an event on the bus.
	Publish(ctx context.Context, pub *PublishedEvent) error

	// Watch returns a channel that receives every event published on the bus.
	Watch(ctx context.Context) (<-chan *PublishedEvent, error)

	// CanPublish returns true if this participant may publish events.
	CanPublish() bool

	// CanSubscribe returns true if this participant may receive events.
	CanSubscribe() bool
}

// envelope is the wire form of a published event.
type envelope struct {
	AccessibleForRestrictedUsers bool            `json:"accessibleForRestrictedUsers"`
	Event                        json.RawMessage `json:"event"`
}

func encodeEnvelope(pub *PublishedEvent) ([]byte, error) {
	rawEvent, err := json.Marshal(pub.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return json.Marshal(envelope{
		AccessibleForRestrictedUsers: pub.AccessibleForRestrictedUsers,
		Event:                        rawEvent,
	})
}

func decodeEnvelope(data []byte) (*PublishedEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	ev, err := event.Unmarshal(env.Event)
	if err != nil {
		return nil, err
	}
	return &PublishedEvent{
		Event:                        ev,
		AccessibleForRestrictedUsers: env.AccessibleForRestrictedUsers,
	}, nil
}
