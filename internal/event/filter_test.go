package event

import (
	"encoding/json"
	"testing"

	"github.com/orbcast/orbcast/internal/common/cnst"
	"github.com/stretchr/testify/assert"
)

func TestAssetFilter_Match(t *testing.T) {
	ev := &AssetEvent{Cause: AssetEventCreate, Asset: Asset{ID: "a1", Realm: "tenantA", ParentID: "p1"}}

	// unrestricted filter matches any asset event
	assert.True(t, (&AssetFilter{}).Match(ev))

	assert.True(t, (&AssetFilter{AssetIDs: []string{"a1", "a2"}}).Match(ev))
	assert.False(t, (&AssetFilter{AssetIDs: []string{"a3"}}).Match(ev))

	assert.True(t, (&AssetFilter{ParentIDs: []string{"p1"}}).Match(ev))
	assert.False(t, (&AssetFilter{ParentIDs: []string{"p2"}}).Match(ev))

	assert.True(t, (&AssetFilter{Realm: "tenantA"}).Match(ev))
	assert.False(t, (&AssetFilter{Realm: "tenantB"}).Match(ev))

	// wrong event kind never matches
	assert.False(t, (&AssetFilter{}).Match(&AttributeEvent{}))
}

func TestAttributeFilter_Match(t *testing.T) {
	ev := &AttributeEvent{Ref: AttributeRef{AssetID: "a1", Name: "temp"}, Realm: "tenantA"}

	assert.True(t, (&AttributeFilter{}).Match(ev))
	assert.True(t, (&AttributeFilter{AssetID: "a1", Names: []string{"temp"}}).Match(ev))
	assert.False(t, (&AttributeFilter{AssetID: "a2"}).Match(ev))
	assert.False(t, (&AttributeFilter{Names: []string{"rpm"}}).Match(ev))
	assert.False(t, (&AttributeFilter{Realm: "tenantB"}).Match(ev))
	assert.False(t, (&AttributeFilter{}).Match(&AssetEvent{}))
}

func TestPredicateFunc(t *testing.T) {
	p := PredicateFunc(func(ev Event) bool { return ev.EventType() == cnst.EventTypeAsset })
	assert.True(t, p.Match(&AssetEvent{}))
	assert.False(t, p.Match(&AttributeEvent{}))
}

func TestUnmarshalFilter(t *testing.T) {
	f, err := UnmarshalFilter([]byte(`{"filterType":"attribute","assetId":"a1","names":["temp"]}`))
	assert.NoError(t, err)
	af, ok := f.(*AttributeFilter)
	assert.True(t, ok)
	assert.Equal(t, "a1", af.AssetID)

	_, err = UnmarshalFilter([]byte(`{"filterType":"nope"}`))
	assert.ErrorIs(t, err, cnst.ErrUnknownFilterType)
}

func TestSubscription_UnmarshalWithFilter(t *testing.T) {
	raw := `{"eventType":"asset","subscriptionId":"s-1","filter":{"filterType":"asset","realm":"tenantA"}}`
	var sub Subscription
	assert.NoError(t, json.Unmarshal([]byte(raw), &sub))
	assert.Equal(t, "asset", sub.EventType)
	assert.Equal(t, "s-1", sub.SubscriptionID)
	if assert.NotNil(t, sub.Filter) {
		assert.True(t, sub.Filter.Match(&AssetEvent{Asset: Asset{Realm: "tenantA"}}))
		assert.False(t, sub.Filter.Match(&AssetEvent{Asset: Asset{Realm: "tenantB"}}))
	}
}

func TestSubscription_UnmarshalWithoutFilter(t *testing.T) {
	raw := `{"eventType":"attribute"}`
	var sub Subscription
	assert.NoError(t, json.Unmarshal([]byte(raw), &sub))
	assert.Nil(t, sub.Filter)
	assert.Empty(t, sub.SubscriptionID)
}
