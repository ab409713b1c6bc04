package cnst

import "errors"

var (
	// ErrSessionNotFound is returned when a session connection is not registered
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownEventType is returned when decoding an event with an unrecognized type discriminator
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrUnknownFilterType is returned when decoding a filter with an unrecognized type discriminator
	ErrUnknownFilterType = errors.New("unknown filter type")
	// ErrNotPublisher is returned when publishing on a bus configured as subscriber-only
	ErrNotPublisher = errors.New("bus is not configured as a publisher")
	// ErrNotSubscriber is returned when watching a bus configured as publisher-only
	ErrNotSubscriber = errors.New("bus is not configured as a subscriber")
)
