package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// DefaultHistory is how many recent messages a channel keeps for polling.
const DefaultHistory = 100

var (
	ErrClosed         = errors.New("broker closed")
	ErrInvalidChannel = errors.New("invalid channel name")
)

var channelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// ValidChannel reports whether name can be used as a channel.
func ValidChannel(name string) bool {
	return channelPattern.MatchString(name)
}

// Message is one entry on a channel. Seq increases by one per channel.
type Message struct {
	Seq     int64           `json:"seq"`
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// Publisher is the write half of a Broker.
type Publisher interface {
	Publish(ctx context.Context, channel, msgType string, payload interface{}) (*Message, error)
}

// Broker delivers messages to live subscribers and keeps a bounded history
// per channel for polling clients.
type Broker interface {
	Publisher
	// Poll returns up to limit history messages with Seq > since, oldest
	// first. limit <= 0 means the whole retained history.
	Poll(ctx context.Context, channel string, since int64, limit int) ([]Message, error)
	// Subscribe streams messages published after the call until ctx is done.
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
	Close() error
}

// NewMessage validates the channel and encodes payload.
func NewMessage(channel, msgType string, payload interface{}) (*Message, error) {
	if !ValidChannel(channel) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}
	msg := &Message{Channel: channel, Type: msgType, SentAt: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message: %w", err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// Since filters history (oldest first) down to messages after seq.
func Since(history []Message, seq int64, limit int) []Message {
	out := make([]Message, 0)
	for _, m := range history {
		if m.Seq <= seq {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
