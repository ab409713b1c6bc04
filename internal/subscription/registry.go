package subscription

import (
	"slices"
	"sync"
	"time"

	"github.com/orbcast/orbcast/internal/event"

	"go.uber.org/zap"
)

// sessionSubscription is one registered subscription plus the session state
// it was created or last renewed with. Instances are immutable once stored;
// Renew replaces them wholesale so that dispatch snapshots never observe a
// half-written entry.
type sessionSubscription struct {
	restrictedUser bool
	timestamp      time.Time
	sub            *event.Subscription
}

// Registry owns the session → subscriptions map. All mutations and the
// snapshot taken by the dispatcher are serialized by a single mutex; no
// user-supplied code runs while the mutex is held.
type Registry struct {
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string][]*sessionSubscription
}

// NewRegistry creates an empty subscription registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger.Named("subscription.registry"),
		now:      time.Now,
		sessions: make(map[string][]*sessionSubscription),
	}
}

// CreateOrUpdate inserts the subscription for the session, replacing any
// existing subscription with the same id, or, for an anonymous subscription,
// any existing anonymous subscription of the same event type. The session
// entry is created on first use.
func (r *Registry) CreateOrUpdate(sessionKey string, restrictedUser bool, sub *event.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.sessions[sessionKey]
	if sub.SubscriptionID == "" {
		subs = slices.DeleteFunc(subs, func(ss *sessionSubscription) bool {
			return ss.sub.SubscriptionID == "" && ss.sub.EventType == sub.EventType
		})
	} else {
		subs = slices.DeleteFunc(subs, func(ss *sessionSubscription) bool {
			return ss.sub.SubscriptionID == sub.SubscriptionID
		})
	}

	r.sessions[sessionKey] = append(subs, &sessionSubscription{
		restrictedUser: restrictedUser,
		timestamp:      r.now(),
		sub:            sub,
	})

	r.logger.Debug("created or updated subscription",
		zap.String("sessionKey", sessionKey),
		zap.String("eventType", sub.EventType),
		zap.String("subscriptionId", sub.SubscriptionID))
}

// Renew refreshes the restricted-user flag and timestamp of every named
// subscription on the session. Unknown ids and unknown sessions are ignored.
func (r *Registry) Renew(sessionKey string, restrictedUser bool, subscriptionIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.sessions[sessionKey]
	if !ok {
		return
	}

	now := r.now()
	for i, ss := range subs {
		if ss.sub.SubscriptionID == "" || !slices.Contains(subscriptionIDs, ss.sub.SubscriptionID) {
			continue
		}
		subs[i] = &sessionSubscription{
			restrictedUser: restrictedUser,
			timestamp:      now,
			sub:            ss.sub,
		}
	}

	r.logger.Debug("renewed subscriptions",
		zap.String("sessionKey", sessionKey),
		zap.Strings("subscriptionIds", subscriptionIDs))
}

// Cancel removes the subscription named by the request: by id when an id is
// given, otherwise every subscription of the given event type. A request
// with neither field set is a no-op, as is an unknown session. The session
// entry is removed when its last subscription goes.
func (r *Registry) Cancel(sessionKey string, cancel *event.CancelSubscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.sessions[sessionKey]
	if !ok {
		return
	}
	if cancel.EventType == "" && cancel.SubscriptionID == "" {
		return
	}

	if cancel.SubscriptionID != "" {
		subs = slices.DeleteFunc(subs, func(ss *sessionSubscription) bool {
			return ss.sub.SubscriptionID == cancel.SubscriptionID
		})
	} else {
		subs = slices.DeleteFunc(subs, func(ss *sessionSubscription) bool {
			return ss.sub.EventType == cancel.EventType
		})
	}

	if len(subs) == 0 {
		delete(r.sessions, sessionKey)
	} else {
		r.sessions[sessionKey] = subs
	}

	r.logger.Debug("cancelled subscription",
		zap.String("sessionKey", sessionKey),
		zap.String("eventType", cancel.EventType),
		zap.String("subscriptionId", cancel.SubscriptionID))
}

// CancelAll unconditionally removes the session entry. Idempotent; this is
// what the transport layer calls on connection teardown.
func (r *Registry) CancelAll(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionKey]; !ok {
		return
	}
	delete(r.sessions, sessionKey)
	r.logger.Debug("cancelled all subscriptions", zap.String("sessionKey", sessionKey))
}

// snapshot returns a shallow copy of the session map so that matching and
// delivery happen outside the lock. Entries added or removed after the copy
// do not affect the dispatch in flight.
func (r *Registry) snapshot() map[string][]*sessionSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]*sessionSubscription, len(r.sessions))
	for sessionKey, subs := range r.sessions {
		cp := make([]*sessionSubscription, len(subs))
		copy(cp, subs)
		out[sessionKey] = cp
	}
	return out
}

// Stats returns the current session and subscription counts.
func (r *Registry) Stats() (sessions, subscriptions int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions = len(r.sessions)
	for _, subs := range r.sessions {
		subscriptions += len(subs)
	}
	return sessions, subscriptions
}

// SubscriptionInfo is a read-only view of one registered subscription,
// surfaced for introspection. Timestamp is the last create-or-renew time;
// any idle-eviction policy built on it belongs to a collaborator.
type SubscriptionInfo struct {
	EventType      string    `json:"eventType"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	RestrictedUser bool      `json:"restrictedUser"`
	Timestamp      time.Time `json:"timestamp"`
	HasFilter      bool      `json:"hasFilter"`
	Internal       bool      `json:"internal"`
}

// Describe returns a read-only view of every session's subscriptions.
func (r *Registry) Describe() map[string][]SubscriptionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]SubscriptionInfo, len(r.sessions))
	for sessionKey, subs := range r.sessions {
		infos := make([]SubscriptionInfo, 0, len(subs))
		for _, ss := range subs {
			infos = append(infos, SubscriptionInfo{
				EventType:      ss.sub.EventType,
				SubscriptionID: ss.sub.SubscriptionID,
				RestrictedUser: ss.restrictedUser,
				Timestamp:      ss.timestamp,
				HasFilter:      ss.sub.Filter != nil,
				Internal:       ss.sub.InternalConsumer != nil,
			})
		}
		out[sessionKey] = infos
	}
	return out
}
