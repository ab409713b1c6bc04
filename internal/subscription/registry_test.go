package subscription

import (
	"testing"
	"time"

	"github.com/orbcast/orbcast/internal/common/cnst"
	"github.com/orbcast/orbcast/internal/event"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func anonymousSub(eventType string) *event.Subscription {
	return &event.Subscription{EventType: eventType}
}

func namedSub(eventType, id string) *event.Subscription {
	return &event.Subscription{EventType: eventType, SubscriptionID: id}
}

func TestRegistry_AnonymousReplace(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	first := anonymousSub(cnst.EventTypeAttribute)
	first.Filter = event.PredicateFunc(func(event.Event) bool { return false })
	second := anonymousSub(cnst.EventTypeAttribute)

	r.CreateOrUpdate("s1", false, first)
	r.CreateOrUpdate("s1", false, second)

	sessions, subs := r.Stats()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 1, subs)

	// the second subscription wins
	infos := r.Describe()["s1"]
	assert.Len(t, infos, 1)
	assert.False(t, infos[0].HasFilter)
}

func TestRegistry_AnonymousPerTypeIndependent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.CreateOrUpdate("s1", false, anonymousSub(cnst.EventTypeAttribute))
	r.CreateOrUpdate("s1", false, anonymousSub(cnst.EventTypeAsset))

	_, subs := r.Stats()
	assert.Equal(t, 2, subs)
}

func TestRegistry_IdReplace(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.now = func() time.Time { return time.Unix(100, 0) }
	r.CreateOrUpdate("s1", false, namedSub(cnst.EventTypeAsset, "x"))

	r.now = func() time.Time { return time.Unix(200, 0) }
	replacement := namedSub(cnst.EventTypeAsset, "x")
	replacement.Filter = event.PredicateFunc(func(event.Event) bool { return true })
	r.CreateOrUpdate("s1", false, replacement)

	infos := r.Describe()["s1"]
	assert.Len(t, infos, 1)
	assert.Equal(t, "x", infos[0].SubscriptionID)
	assert.True(t, infos[0].HasFilter)
	assert.Equal(t, time.Unix(200, 0), infos[0].Timestamp)
}

func TestRegistry_Renew(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.now = func() time.Time { return time.Unix(100, 0) }
	r.CreateOrUpdate("s1", true, namedSub(cnst.EventTypeAsset, "a"))
	r.CreateOrUpdate("s1", true, namedSub(cnst.EventTypeAsset, "b"))

	r.now = func() time.Time { return time.Unix(300, 0) }
	r.Renew("s1", false, []string{"a", "unknown"})

	byID := map[string]SubscriptionInfo{}
	for _, info := range r.Describe()["s1"] {
		byID[info.SubscriptionID] = info
	}
	assert.False(t, byID["a"].RestrictedUser)
	assert.Equal(t, time.Unix(300, 0), byID["a"].Timestamp)
	// untouched subscription keeps its original state
	assert.True(t, byID["b"].RestrictedUser)
	assert.Equal(t, time.Unix(100, 0), byID["b"].Timestamp)

	// unknown session is a no-op
	r.Renew("ghost", false, []string{"a"})
}

func TestRegistry_CancelByIdIsolation(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.CreateOrUpdate("s1", false, namedSub(cnst.EventTypeAsset, "x"))
	r.CreateOrUpdate("s1", false, namedSub(cnst.EventTypeAsset, "y"))
	r.CreateOrUpdate("s2", false, namedSub(cnst.EventTypeAsset, "x"))

	r.Cancel("s1", &event.CancelSubscription{SubscriptionID: "x"})

	infos := r.Describe()
	assert.Len(t, infos["s1"], 1)
	assert.Equal(t, "y", infos["s1"][0].SubscriptionID)
	// same id on another session is unaffected
	assert.Len(t, infos["s2"], 1)
}

func TestRegistry_CancelByType(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.CreateOrUpdate("s1", false, anonymousSub(cnst.EventTypeAttribute))
	r.CreateOrUpdate("s1", false, namedSub(cnst.EventTypeAttribute, "named"))
	r.CreateOrUpdate("s1", false, namedSub(cnst.EventTypeAsset, "keep"))

	r.Cancel("s1", &event.CancelSubscription{EventType: cnst.EventTypeAttribute})

	infos := r.Describe()["s1"]
	assert.Len(t, infos, 1)
	assert.Equal(t, "keep", infos[0].SubscriptionID)
}

func TestRegistry_CancelRemovesEmptySession(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.CreateOrUpdate("s4", false, namedSub(cnst.EventTypeAsset, "x"))
	r.Cancel("s4", &event.CancelSubscription{SubscriptionID: "x"})

	sessions, _ := r.Stats()
	assert.Equal(t, 0, sessions)
}

func TestRegistry_CancelNoops(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.CreateOrUpdate("s1", false, namedSub(cnst.EventTypeAsset, "x"))

	// empty request
	r.Cancel("s1", &event.CancelSubscription{})
	// unknown id leaves the set untouched
	r.Cancel("s1", &event.CancelSubscription{SubscriptionID: "nope"})
	// unknown session
	r.Cancel("ghost", &event.CancelSubscription{SubscriptionID: "x"})

	_, subs := r.Stats()
	assert.Equal(t, 1, subs)
}

func TestRegistry_CancelAllIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.CreateOrUpdate("s5", false, namedSub(cnst.EventTypeAsset, "x"))
	r.CreateOrUpdate("s5", false, anonymousSub(cnst.EventTypeAttribute))

	r.CancelAll("s5")
	sessions, _ := r.Stats()
	assert.Equal(t, 0, sessions)

	// twice in a row is safe, as is an unknown session
	r.CancelAll("s5")
	r.CancelAll("never-seen")

	// the session key is not permanently blocked
	r.CreateOrUpdate("s5", false, anonymousSub(cnst.EventTypeAsset))
	sessions, subs := r.Stats()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 1, subs)
}
