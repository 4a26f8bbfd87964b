package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
)

func TestBrokerPublishAssignsSequence(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(10)

	m1, err := b.Publish(ctx, "conversation.c1", "message", map[string]string{"body": "hi"})
	require.NoError(t, err)
	m2, err := b.Publish(ctx, "conversation.c1", "message", nil)
	require.NoError(t, err)
	other, err := b.Publish(ctx, "records.patients", "created", nil)
	require.NoError(t, err)

	assert.EqualValues(t, 1, m1.Seq)
	assert.EqualValues(t, 2, m2.Seq)
	assert.EqualValues(t, 1, other.Seq)
	assert.JSONEq(t, `{"body":"hi"}`, string(m1.Payload))
	assert.Nil(t, m2.Payload)
}

func TestBrokerPollSinceAndLimit(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(10)
	for i := 0; i < 5; i++ {
		_, err := b.Publish(ctx, "ch", "tick", i)
		require.NoError(t, err)
	}

	msgs, err := b.Poll(ctx, "ch", 0, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 5)

	msgs, err = b.Poll(ctx, "ch", 2, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.EqualValues(t, 3, msgs[0].Seq)
	assert.EqualValues(t, 4, msgs[1].Seq)

	msgs, err = b.Poll(ctx, "unknown", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBrokerHistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(3)
	for i := 0; i < 7; i++ {
		_, err := b.Publish(ctx, "ch", "tick", i)
		require.NoError(t, err)
	}

	msgs, err := b.Poll(ctx, "ch", 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.EqualValues(t, 5, msgs[0].Seq)
	assert.EqualValues(t, 7, msgs[2].Seq)

	var v int
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &v))
	assert.Equal(t, 6, v)
}

func TestBrokerSubscribeFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewBroker(10)

	s1, err := b.Subscribe(ctx, "ch")
	require.NoError(t, err)
	s2, err := b.Subscribe(ctx, "ch")
	require.NoError(t, err)

	_, err = b.Publish(context.Background(), "ch", "hello", nil)
	require.NoError(t, err)

	for _, sub := range []<-chan messaging.Message{s1, s2} {
		select {
		case msg := <-sub:
			assert.Equal(t, "hello", msg.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestBrokerSubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBroker(10)

	sub, err := b.Subscribe(ctx, "ch")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestBrokerRejectsInvalidChannel(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(10)

	_, err := b.Publish(ctx, "bad channel", "x", nil)
	assert.ErrorIs(t, err, messaging.ErrInvalidChannel)
	_, err = b.Poll(ctx, "", 0, 0)
	assert.ErrorIs(t, err, messaging.ErrInvalidChannel)
	_, err = b.Subscribe(ctx, "../etc")
	assert.ErrorIs(t, err, messaging.ErrInvalidChannel)
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker(10)
	sub, err := b.Subscribe(context.Background(), "ch")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	_, ok := <-sub
	assert.False(t, ok)

	_, err = b.Publish(context.Background(), "ch", "x", nil)
	assert.ErrorIs(t, err, messaging.ErrClosed)
}
