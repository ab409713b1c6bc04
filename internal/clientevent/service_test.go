package clientevent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/orbcast/orbcast/internal/bus"
	"github.com/orbcast/orbcast/internal/common/cnst"
	"github.com/orbcast/orbcast/internal/common/config"
	"github.com/orbcast/orbcast/internal/event"
	"github.com/orbcast/orbcast/internal/session"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, session.Store) {
	t.Helper()
	store := session.NewMemoryStore(zap.NewNop())
	return NewService(zap.NewNop(), store, nil, nil), store
}

func register(t *testing.T, store session.Store, sessionKey string) session.Connection {
	t.Helper()
	conn, err := store.Register(context.Background(), &session.Meta{Key: sessionKey, CreatedAt: time.Now()})
	assert.NoError(t, err)
	return conn
}

func drainTriggered(t *testing.T, conn session.Connection) *event.TriggeredSubscription {
	t.Helper()
	select {
	case msg := <-conn.EventQueue():
		assert.Equal(t, cnst.MessageEventTriggered, msg.Event)
		var triggered event.TriggeredSubscription
		assert.NoError(t, json.Unmarshal(msg.Data, &triggered))
		return &triggered
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for triggered message")
		return nil
	}
}

func TestService_SubscribePublishDeliver(t *testing.T) {
	svc, store := newTestService(t)
	conn := register(t, store, "s1")

	svc.Subscribe("s1", false, &event.Subscription{EventType: cnst.EventTypeAttribute})

	ev := &event.AttributeEvent{Ref: event.AttributeRef{AssetID: "a1", Name: "temp"}, Value: 20.5}
	assert.NoError(t, svc.Publish(context.Background(), ev, true))

	triggered := drainTriggered(t, conn)
	assert.Empty(t, triggered.SubscriptionID)
	assert.Len(t, triggered.Events, 1)
	assert.Equal(t, "temp", triggered.Events[0].(*event.AttributeEvent).Ref.Name)
}

func TestService_TwoSubscriptionsGetSeparateMessages(t *testing.T) {
	svc, store := newTestService(t)
	conn := register(t, store, "s2")

	svc.Subscribe("s2", false, &event.Subscription{EventType: cnst.EventTypeAsset, SubscriptionID: "a"})
	svc.Subscribe("s2", false, &event.Subscription{EventType: cnst.EventTypeAsset, SubscriptionID: "b"})

	ev := &event.AssetEvent{Cause: event.AssetEventUpdate, Asset: event.Asset{ID: "a1"}}
	assert.NoError(t, svc.Publish(context.Background(), ev, true))

	ids := []string{drainTriggered(t, conn).SubscriptionID, drainTriggered(t, conn).SubscriptionID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestService_RestrictedSessionGetsNothing(t *testing.T) {
	svc, store := newTestService(t)
	conn := register(t, store, "s3")

	svc.Subscribe("s3", true, &event.Subscription{EventType: cnst.EventTypeAttribute})

	ev := &event.AttributeEvent{Ref: event.AttributeRef{AssetID: "a1", Name: "temp"}}
	assert.NoError(t, svc.Publish(context.Background(), ev, false))

	select {
	case msg := <-conn.EventQueue():
		t.Fatalf("restricted session received %q message", msg.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestService_MissingConnectionDoesNotBlockOthers(t *testing.T) {
	svc, store := newTestService(t)
	// "ghost" subscribes but never registers a connection
	svc.Subscribe("ghost", false, &event.Subscription{EventType: cnst.EventTypeAttribute})

	conn := register(t, store, "live")
	svc.Subscribe("live", false, &event.Subscription{EventType: cnst.EventTypeAttribute})

	ev := &event.AttributeEvent{Ref: event.AttributeRef{AssetID: "a1", Name: "temp"}}
	assert.NoError(t, svc.Publish(context.Background(), ev, true))

	assert.NotNil(t, drainTriggered(t, conn))
}

func TestService_Disconnect(t *testing.T) {
	svc, store := newTestService(t)
	register(t, store, "s4")
	svc.Subscribe("s4", false, &event.Subscription{EventType: cnst.EventTypeAsset, SubscriptionID: "x"})

	svc.Disconnect(context.Background(), "s4")

	sessions, _ := svc.Registry().Stats()
	assert.Equal(t, 0, sessions)
	_, err := store.Get(context.Background(), "s4")
	assert.ErrorIs(t, err, cnst.ErrSessionNotFound)

	// idempotent for an unknown session
	svc.Disconnect(context.Background(), "s4")
}

func TestService_InternalSubscription(t *testing.T) {
	svc, _ := newTestService(t)

	received := make(chan event.Event, 1)
	id := svc.AddInternalSubscription(cnst.EventTypeAttribute, nil, func(ev event.Event) {
		received <- ev
	})
	assert.NotEmpty(t, id)

	ev := &event.AttributeEvent{Ref: event.AttributeRef{AssetID: "a1", Name: "temp"}}
	assert.NoError(t, svc.Publish(context.Background(), ev, true))

	select {
	case got := <-received:
		assert.Same(t, event.Event(ev), got)
	case <-time.After(time.Second):
		t.Fatal("internal consumer was not invoked")
	}

	svc.RemoveInternalSubscription(id)
	sessions, _ := svc.Registry().Stats()
	assert.Equal(t, 0, sessions)
}

func TestService_PublishOverBus(t *testing.T) {
	store := session.NewMemoryStore(zap.NewNop())
	eventBus := bus.NewChannelBus(zap.NewNop(), config.RoleBoth)
	svc := NewService(zap.NewNop(), store, eventBus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, svc.Run(ctx))
	}()
	// give the watcher time to attach
	time.Sleep(50 * time.Millisecond)

	conn := register(t, store, "s1")
	svc.Subscribe("s1", false, &event.Subscription{EventType: cnst.EventTypeAsset})

	ev := &event.AssetEvent{Cause: event.AssetEventDelete, Asset: event.Asset{ID: "gone"}}
	assert.NoError(t, svc.Publish(ctx, ev, true))

	triggered := drainTriggered(t, conn)
	assert.Equal(t, event.AssetEventDelete, triggered.Events[0].(*event.AssetEvent).Cause)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}
