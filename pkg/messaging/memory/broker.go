// Package memory is an in-process messaging.Broker.
package memory

import (
	"context"
	"sync"

	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
)

const subscriberBuffer = 64

type channelState struct {
	seq     int64
	history []messaging.Message
	subs    map[int]chan messaging.Message
}

type Broker struct {
	mu       sync.Mutex
	history  int
	channels map[string]*channelState
	nextSub  int
	closed   bool
}

// NewBroker keeps the last history messages of every channel.
func NewBroker(history int) *Broker {
	if history <= 0 {
		history = messaging.DefaultHistory
	}
	return &Broker{history: history, channels: make(map[string]*channelState)}
}

func (b *Broker) state(channel string) *channelState {
	st, ok := b.channels[channel]
	if !ok {
		st = &channelState{subs: make(map[int]chan messaging.Message)}
		b.channels[channel] = st
	}
	return st
}

func (b *Broker) Publish(ctx context.Context, channel, msgType string, payload interface{}) (*messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, err := messaging.NewMessage(channel, msgType, payload)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, messaging.ErrClosed
	}
	st := b.state(channel)
	st.seq++
	msg.Seq = st.seq
	st.history = append(st.history, *msg)
	if len(st.history) > b.history {
		st.history = st.history[len(st.history)-b.history:]
	}
	for _, sub := range st.subs {
		// slow subscribers miss messages and can catch up by polling
		select {
		case sub <- *msg:
		default:
		}
	}
	return msg, nil
}

func (b *Broker) Poll(ctx context.Context, channel string, since int64, limit int) ([]messaging.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !messaging.ValidChannel(channel) {
		return nil, messaging.ErrInvalidChannel
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, messaging.ErrClosed
	}
	st, ok := b.channels[channel]
	if !ok {
		return []messaging.Message{}, nil
	}
	return messaging.Since(st.history, since, limit), nil
}

func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan messaging.Message, error) {
	if !messaging.ValidChannel(channel) {
		return nil, messaging.ErrInvalidChannel
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, messaging.ErrClosed
	}
	id := b.nextSub
	b.nextSub++
	ch := make(chan messaging.Message, subscriberBuffer)
	b.state(channel).subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if st, ok := b.channels[channel]; ok {
			if sub, ok := st.subs[id]; ok {
				delete(st.subs, id)
				close(sub)
			}
		}
	}()
	return ch, nil
}

// Close ends every subscription.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, st := range b.channels {
		for id, sub := range st.subs {
			delete(st.subs, id)
			close(sub)
		}
	}
	return nil
}

var _ messaging.Broker = (*Broker)(nil)
