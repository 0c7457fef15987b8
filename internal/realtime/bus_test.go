package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

func sessionEvent(userID string) model.ChangeEvent {
	return model.ChangeEvent{
		Type:    model.ChangeUpdate,
		Entity:  model.TopicSessions,
		Session: &model.Session{ID: "s-" + userID, UserID: userID},
	}
}

func receive(t *testing.T, sub model.Subscription) model.ChangeEvent {
	t.Helper()
	select {
	case ev := <-sub.Changes():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return model.ChangeEvent{}
	}
}

func TestBus_PublishRespectsTopicAndFilter(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	all, err := b.Subscribe(ctx, model.TopicSessions, model.Filter{})
	require.NoError(t, err)
	others, err := b.Subscribe(ctx, model.TopicSessions, model.Filter{ExcludeUserID: "alice"})
	require.NoError(t, err)
	profiles, err := b.Subscribe(ctx, model.TopicProfiles, model.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 1, b.Publish(sessionEvent("alice")))
	assert.Equal(t, 2, b.Publish(sessionEvent("bob")))

	assert.Equal(t, "alice", receive(t, all).Session.UserID)
	assert.Equal(t, "bob", receive(t, all).Session.UserID)
	assert.Equal(t, "bob", receive(t, others).Session.UserID)
	assert.Len(t, profiles.Changes(), 0)
}

func TestBus_CloseReleasesTopic(t *testing.T) {
	b := NewBus()
	sub, err := b.Subscribe(context.Background(), model.TopicProfiles, model.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers(model.TopicProfiles))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	<-sub.Done()
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, b.Subscribers(model.TopicProfiles))
	assert.Equal(t, 0, b.Publish(model.ChangeEvent{Entity: model.TopicProfiles, Profile: &model.Profile{UserID: "x"}}))
}

func TestBus_ContextCancelEndsSubscription(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, model.TopicSessions, model.Filter{})
	require.NoError(t, err)

	cancel()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not ended by context")
	}
	assert.Eventually(t, func() bool { return b.Subscribers(model.TopicSessions) == 0 },
		time.Second, 5*time.Millisecond)
}

func TestBus_DisconnectReportsTransportError(t *testing.T) {
	b := NewBus()
	sub, err := b.Subscribe(context.Background(), model.TopicSessions, model.Filter{})
	require.NoError(t, err)

	b.Disconnect(nil)

	<-sub.Done()
	assert.ErrorIs(t, sub.Err(), ErrTransport)
	assert.Equal(t, 0, b.Subscribers(model.TopicSessions))
}

func TestBus_FailSubscribes(t *testing.T) {
	b := NewBus()
	boom := errors.New("dns failure")
	b.FailSubscribes(2, boom)

	_, err := b.Subscribe(context.Background(), model.TopicSessions, model.Filter{})
	assert.ErrorIs(t, err, boom)
	_, err = b.Subscribe(context.Background(), model.TopicSessions, model.Filter{})
	assert.ErrorIs(t, err, boom)

	sub, err := b.Subscribe(context.Background(), model.TopicSessions, model.Filter{})
	require.NoError(t, err)
	assert.NotNil(t, sub)
}

func TestBus_ClosedBusRejectsSubscribe(t *testing.T) {
	b := NewBus()
	sub, err := b.Subscribe(context.Background(), model.TopicSessions, model.Filter{})
	require.NoError(t, err)

	require.NoError(t, b.Close())

	<-sub.Done()
	_, err = b.Subscribe(context.Background(), model.TopicSessions, model.Filter{})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestBus_PublishUnblocksWhenSubscriberCloses(t *testing.T) {
	b := NewBus(WithBuffer(1))
	sub, err := b.Subscribe(context.Background(), model.TopicSessions, model.Filter{})
	require.NoError(t, err)

	require.Equal(t, 1, b.Publish(sessionEvent("a")))

	done := make(chan int)
	go func() { done <- b.Publish(sessionEvent("b")) }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, sub.Close())

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("publish still blocked")
	}
}
