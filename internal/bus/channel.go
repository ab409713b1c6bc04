package bus

import (
	"context"
	"sync"

	"github.com/orbcast/orbcast/internal/common/cnst"
	"github.com/orbcast/orbcast/internal/common/config"

	"go.uber.org/zap"
)

// ChannelBus implements Bus in-process for single-node deployments. Every
// published event is fanned out to all current watchers.
type ChannelBus struct {
	logger   *zap.Logger
	role     config.BusRole
	mu       sync.RWMutex
	watchers map[chan *PublishedEvent]struct{}
}

var _ Bus = (*ChannelBus)(nil)

// NewChannelBus creates a new in-process event bus.
func NewChannelBus(logger *zap.Logger, role config.BusRole) *ChannelBus {
	return &ChannelBus{
		logger:   logger.Named("bus.channel"),
		role:     role,
		watchers: make(map[chan *PublishedEvent]struct{}),
	}
}

// Publish implements Bus.Publish
func (b *ChannelBus) Publish(_ context.Context, pub *PublishedEvent) error {
	if !b.CanPublish() {
		return cnst.ErrNotPublisher
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.watchers {
		select {
		case ch <- pub:
		default:
			b.logger.Warn("watcher channel is full, dropping event",
				zap.String("eventType", pub.Event.EventType()))
		}
	}
	return nil
}

// Watch implements Bus.Watch
func (b *ChannelBus) Watch(ctx context.Context) (<-chan *PublishedEvent, error) {
	if !b.CanSubscribe() {
		return nil, cnst.ErrNotSubscriber
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *PublishedEvent, 64)
	b.watchers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.watchers, ch)
		close(ch)
	}()

	return ch, nil
}

// CanPublish implements Bus.CanPublish
func (b *ChannelBus) CanPublish() bool {
	return b.role == config.RolePublisher || b.role == config.RoleBoth
}

// CanSubscribe implements Bus.CanSubscribe
func (b *ChannelBus) CanSubscribe() bool {
	return b.role == config.RoleSubscriber || b.role == config.RoleBoth
}
