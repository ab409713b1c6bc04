package subscription

import (
	"github.com/orbcast/orbcast/internal/event"
	"github.com/orbcast/orbcast/pkg/metrics"

	"go.uber.org/zap"
)

// Delivery is one outbound (session, event) pairing produced by a dispatch.
// SubscriptionID is empty for anonymous subscriptions.
type Delivery struct {
	SessionKey     string
	SubscriptionID string
	Event          event.Event
}

// Dispatcher fans one incoming event out to every matching subscription in
// the registry. It takes a snapshot under the registry lock and evaluates
// filters and internal consumers strictly outside it, so a slow or faulty
// filter never stalls concurrent subscribe/cancel traffic.
type Dispatcher struct {
	logger   *zap.Logger
	registry *Registry
	metrics  *metrics.Metrics
}

// NewDispatcher creates a dispatcher over the given registry. metrics may
// be nil.
func NewDispatcher(logger *zap.Logger, registry *Registry, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		logger:   logger.Named("subscription.dispatcher"),
		registry: registry,
		metrics:  m,
	}
}

// Dispatch matches the event against every subscription of every session in
// the current registry snapshot. Matches with an internal consumer are
// delivered synchronously in-process; all other matches are returned as
// deliveries for the transport layer. A session with several matching
// subscriptions receives one delivery per subscription; there is no
// deduplication or batching.
//
// The snapshot is taken once, so a subscription cancelled concurrently may
// still receive this one event.
func (d *Dispatcher) Dispatch(ev event.Event, accessibleForRestrictedUsers bool) []Delivery {
	snapshot := d.registry.snapshot()

	var deliveries []Delivery
	for sessionKey, subs := range snapshot {
		for _, ss := range subs {
			if !ss.matches(accessibleForRestrictedUsers, ev) {
				continue
			}
			if !d.evalFilter(sessionKey, ss, ev) {
				continue
			}

			if ss.sub.InternalConsumer != nil {
				d.consume(sessionKey, ss, ev)
				continue
			}

			deliveries = append(deliveries, Delivery{
				SessionKey:     sessionKey,
				SubscriptionID: ss.sub.SubscriptionID,
				Event:          ev,
			})
		}
	}
	return deliveries
}

// evalFilter runs the subscription's predicate. A panicking predicate is
// treated as "does not match" for this subscription only; other
// subscriptions and sessions are unaffected.
func (d *Dispatcher) evalFilter(sessionKey string, ss *sessionSubscription, ev event.Event) (matched bool) {
	if ss.sub.Filter == nil {
		return true
	}

	defer func() {
		if rec := recover(); rec != nil {
			matched = false
			if d.metrics != nil {
				d.metrics.FilterFault(ev.EventType())
			}
			d.logger.Error("subscription filter panicked",
				zap.String("sessionKey", sessionKey),
				zap.String("eventType", ev.EventType()),
				zap.String("subscriptionId", ss.sub.SubscriptionID),
				zap.Any("panic", rec))
		}
	}()

	return ss.sub.Filter.Match(ev)
}

// consume invokes an internal consumer on the dispatching goroutine,
// isolating panics so a faulty consumer cannot abort delivery to
// subsequently matched sessions.
func (d *Dispatcher) consume(sessionKey string, ss *sessionSubscription, ev event.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			if d.metrics != nil {
				d.metrics.ConsumerFault()
			}
			d.logger.Error("internal consumer panicked",
				zap.String("sessionKey", sessionKey),
				zap.String("subscriptionId", ss.sub.SubscriptionID),
				zap.Any("panic", rec))
		}
	}()

	ss.sub.InternalConsumer(ev)
}
