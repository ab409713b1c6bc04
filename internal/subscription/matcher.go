package subscription

import "github.com/orbcast/orbcast/internal/event"

// matches applies the visibility gate and the event type check. The gate is
// evaluated first: a restricted session never matches an event that is not
// accessible to restricted users, regardless of type or filter. Event types
// compare by exact string equality; there is no hierarchy or wildcarding.
func (ss *sessionSubscription) matches(accessibleForRestrictedUsers bool, ev event.Event) bool {
	return (!ss.restrictedUser || accessibleForRestrictedUsers) && ss.sub.EventType == ev.EventType()
}
