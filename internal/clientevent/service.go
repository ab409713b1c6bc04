package clientevent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/orbcast/orbcast/internal/bus"
	"github.com/orbcast/orbcast/internal/common/cnst"
	"github.com/orbcast/orbcast/internal/event"
	"github.com/orbcast/orbcast/internal/session"
	"github.com/orbcast/orbcast/internal/subscription"
	"github.com/orbcast/orbcast/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the client event facade: it owns the subscription registry and
// dispatcher, fans dispatched events out to session connection queues, and
// bridges the cross-node event bus. The transport layer drives the
// subscribe/cancel side as clients come and go; event producers drive
// Publish.
type Service struct {
	logger     *zap.Logger
	registry   *subscription.Registry
	dispatcher *subscription.Dispatcher
	sessions   session.Store
	bus        bus.Bus
	metrics    *metrics.Metrics
}

// NewService creates the client event service. eventBus and m may be nil;
// without a bus every published event is dispatched in-process only.
func NewService(logger *zap.Logger, sessions session.Store, eventBus bus.Bus, m *metrics.Metrics) *Service {
	registry := subscription.NewRegistry(logger)
	return &Service{
		logger:     logger.Named("clientevent"),
		registry:   registry,
		dispatcher: subscription.NewDispatcher(logger, registry, m),
		sessions:   sessions,
		bus:        eventBus,
		metrics:    m,
	}
}

// Registry exposes the subscription registry for introspection.
func (s *Service) Registry() *subscription.Registry {
	return s.registry
}

// Subscribe creates or replaces a subscription for the session.
func (s *Service) Subscribe(sessionKey string, restrictedUser bool, sub *event.Subscription) {
	s.registry.CreateOrUpdate(sessionKey, restrictedUser, sub)
	s.updateGauges()
}

// Renew refreshes the named subscriptions on the session.
func (s *Service) Renew(sessionKey string, restrictedUser bool, subscriptionIDs []string) {
	s.registry.Renew(sessionKey, restrictedUser, subscriptionIDs)
}

// Cancel removes the subscription named by the request.
func (s *Service) Cancel(sessionKey string, cancel *event.CancelSubscription) {
	s.registry.Cancel(sessionKey, cancel)
	s.updateGauges()
}

// CancelAll removes every subscription of the session.
func (s *Service) CancelAll(sessionKey string) {
	s.registry.CancelAll(sessionKey)
	s.updateGauges()
}

// Disconnect tears down the session: all subscriptions are cancelled and the
// connection, if registered, is unregistered. The transport layer must call
// this exactly once on connection teardown.
func (s *Service) Disconnect(ctx context.Context, sessionKey string) {
	s.CancelAll(sessionKey)
	if err := s.sessions.Unregister(ctx, sessionKey); err != nil && !errors.Is(err, cnst.ErrSessionNotFound) {
		s.logger.Error("failed to unregister session",
			zap.String("sessionKey", sessionKey),
			zap.Error(err))
	}
}

// AddInternalSubscription registers a server-internal consumer for events of
// the given type under a generated subscription id, which is returned for
// later removal. filter may be nil.
func (s *Service) AddInternalSubscription(eventType string, filter event.Predicate, consumer func(event.Event)) string {
	id := uuid.New().String()
	s.registry.CreateOrUpdate(cnst.InternalSessionKey, false, &event.Subscription{
		EventType:        eventType,
		SubscriptionID:   id,
		Filter:           filter,
		InternalConsumer: consumer,
	})
	s.updateGauges()
	return id
}

// RemoveInternalSubscription removes a previously added internal consumer.
func (s *Service) RemoveInternalSubscription(subscriptionID string) {
	s.registry.Cancel(cnst.InternalSessionKey, &event.CancelSubscription{SubscriptionID: subscriptionID})
	s.updateGauges()
}

// Publish emits one domain event together with the visibility flag decided
// by the authorization collaborator. With a publishing bus the event travels
// over the bus and is dispatched by every watching node, this one included;
// otherwise it is dispatched in-process immediately.
func (s *Service) Publish(ctx context.Context, ev event.Event, accessibleForRestrictedUsers bool) error {
	pub := &bus.PublishedEvent{Event: ev, AccessibleForRestrictedUsers: accessibleForRestrictedUsers}
	if s.bus != nil && s.bus.CanPublish() {
		return s.bus.Publish(ctx, pub)
	}
	s.dispatchAndDeliver(ctx, pub)
	return nil
}

// Run watches the event bus and dispatches every received event to local
// sessions. It blocks until the context is cancelled. With no subscribing
// bus it returns immediately.
func (s *Service) Run(ctx context.Context) error {
	if s.bus == nil || !s.bus.CanSubscribe() {
		return nil
	}

	ch, err := s.bus.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch event bus: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case pub, ok := <-ch:
			if !ok {
				return nil
			}
			s.dispatchAndDeliver(ctx, pub)
		}
	}
}

// dispatchAndDeliver matches the event against the registry and enqueues a
// triggered message per match on the session's connection. A missing or full
// connection drops that one delivery; it never blocks the dispatch or
// delivery to other sessions.
func (s *Service) dispatchAndDeliver(ctx context.Context, pub *bus.PublishedEvent) {
	start := time.Now()
	deliveries := s.dispatcher.Dispatch(pub.Event, pub.AccessibleForRestrictedUsers)

	for _, delivery := range deliveries {
		conn, err := s.sessions.Get(ctx, delivery.SessionKey)
		if err != nil {
			if s.metrics != nil {
				s.metrics.DeliveryDropped("no_connection")
			}
			s.logger.Debug("no connection for matched session",
				zap.String("sessionKey", delivery.SessionKey))
			continue
		}

		triggered := &event.TriggeredSubscription{
			SubscriptionID: delivery.SubscriptionID,
			Events:         []event.Event{delivery.Event},
		}
		data, err := json.Marshal(triggered)
		if err != nil {
			s.logger.Error("failed to marshal triggered subscription", zap.Error(err))
			continue
		}

		if err := conn.Send(ctx, &session.Message{Event: cnst.MessageEventTriggered, Data: data}); err != nil {
			if s.metrics != nil {
				s.metrics.DeliveryDropped("queue_full")
			}
			s.logger.Warn("failed to enqueue delivery",
				zap.String("sessionKey", delivery.SessionKey),
				zap.String("subscriptionId", delivery.SubscriptionID),
				zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.DispatchDone(pub.Event.EventType(), start, len(deliveries))
	}
}

func (s *Service) updateGauges() {
	if s.metrics == nil {
		return
	}
	sessions, subscriptions := s.registry.Stats()
	s.metrics.SetRegistrySize(sessions, subscriptions)
}
