package event

import (
	"encoding/json"
	"fmt"
)

// Subscription is a standing request by a session to receive events of one
// type, optionally filtered and optionally identified. A subscription with
// an empty SubscriptionID is anonymous: a session holds at most one anonymous
// subscription per event type.
type Subscription struct {
	EventType      string    `json:"eventType"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	Filter         Predicate `json:"filter,omitempty"`

	// InternalConsumer, when set, is invoked in-process with each matched
	// event instead of producing a transport message. Never serialized.
	InternalConsumer func(Event) `json:"-"`
}

// UnmarshalJSON decodes the optional polymorphic filter alongside the plain
// fields.
func (s *Subscription) UnmarshalJSON(data []byte) error {
	var raw struct {
		EventType      string          `json:"eventType"`
		SubscriptionID string          `json:"subscriptionId"`
		Filter         json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.EventType = raw.EventType
	s.SubscriptionID = raw.SubscriptionID
	s.Filter = nil
	if len(raw.Filter) > 0 && string(raw.Filter) != "null" {
		f, err := UnmarshalFilter(raw.Filter)
		if err != nil {
			return fmt.Errorf("failed to unmarshal subscription filter: %w", err)
		}
		s.Filter = f
	}
	return nil
}

// CancelSubscription asks the registry to remove the subscription with the
// given id or, when no id is given, every subscription of the given type.
type CancelSubscription struct {
	EventType      string `json:"eventType,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// RenewSubscriptions refreshes the named subscriptions on a session,
// updating their restricted-user flag and timestamp.
type RenewSubscriptions struct {
	SubscriptionIDs []string `json:"subscriptionIds"`
}

// TriggeredSubscription is the outbound message produced for one matched
// subscription. Events always contains exactly one element.
type TriggeredSubscription struct {
	SubscriptionID string  `json:"subscriptionId,omitempty"`
	Events         []Event `json:"events"`
}

// UnmarshalJSON decodes the polymorphic event list.
func (t *TriggeredSubscription) UnmarshalJSON(data []byte) error {
	var raw struct {
		SubscriptionID string            `json:"subscriptionId"`
		Events         []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.SubscriptionID = raw.SubscriptionID
	t.Events = make([]Event, 0, len(raw.Events))
	for _, rawEv := range raw.Events {
		ev, err := Unmarshal(rawEv)
		if err != nil {
			return err
		}
		t.Events = append(t.Events, ev)
	}
	return nil
}
