package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/telehealth-admin/pkg/circuitbreaker"
	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
)

type RedisBroker struct {
	client  *redis.Client
	cb      *circuitbreaker.CircuitBreaker
	logger  *zerolog.Logger
	history int
}

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	History  int
}

func NewRedisBroker(config Config, logger *zerolog.Logger) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newBroker(client, config.History, logger), nil
}

func newBroker(client *redis.Client, history int, logger *zerolog.Logger) *RedisBroker {
	if history <= 0 {
		history = messaging.DefaultHistory
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:             "redis-broker",
		MaxRequests:      1,
		Interval:         10 * time.Second,
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		OnStateChange: func(name, from, to string) {
			logger.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("circuit breaker state changed")
		},
	})
	return &RedisBroker{client: client, cb: cb, logger: logger, history: history}
}

func seqKey(channel string) string {
	return "channel:" + channel + ":seq"
}

func historyKey(channel string) string {
	return "channel:" + channel + ":history"
}

func pubsubKey(channel string) string {
	return "channel:" + channel
}

func (b *RedisBroker) Publish(ctx context.Context, channel, msgType string, payload interface{}) (*messaging.Message, error) {
	msg, err := messaging.NewMessage(channel, msgType, payload)
	if err != nil {
		return nil, err
	}

	err = b.cb.Execute(func() error {
		seq, err := b.client.Incr(ctx, seqKey(channel)).Result()
		if err != nil {
			return err
		}
		msg.Seq = seq
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, historyKey(channel), data)
			pipe.LTrim(ctx, historyKey(channel), 0, int64(b.history-1))
			pipe.Publish(ctx, pubsubKey(channel), data)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return msg, nil
}

func (b *RedisBroker) Poll(ctx context.Context, channel string, since int64, limit int) ([]messaging.Message, error) {
	if !messaging.ValidChannel(channel) {
		return nil, messaging.ErrInvalidChannel
	}
	var raw []string
	err := b.cb.Execute(func() error {
		var err error
		raw, err = b.client.LRange(ctx, historyKey(channel), 0, -1).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", channel, err)
	}
	return messaging.Since(decodeHistory(raw, b.logger), since, limit), nil
}

// decodeHistory turns the newest-first list into oldest-first messages,
// skipping entries that don't decode.
func decodeHistory(raw []string, logger *zerolog.Logger) []messaging.Message {
	out := make([]messaging.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m messaging.Message
		if err := json.Unmarshal([]byte(raw[i]), &m); err != nil {
			logger.Warn().Err(err).Msg("skipping undecodable history entry")
			continue
		}
		out = append(out, m)
	}
	return out
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan messaging.Message, error) {
	if !messaging.ValidChannel(channel) {
		return nil, messaging.ErrInvalidChannel
	}
	pubsub := b.client.Subscribe(ctx, pubsubKey(channel))
	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	msgChan := make(chan messaging.Message, 100)
	go func() {
		defer func() {
			pubsub.Close()
			close(msgChan)
		}()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case rm, ok := <-in:
				if !ok {
					return
				}
				var m messaging.Message
				if err := json.Unmarshal([]byte(rm.Payload), &m); err != nil {
					b.logger.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable message")
					continue
				}
				select {
				case msgChan <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return msgChan, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

var _ messaging.Broker = (*RedisBroker)(nil)
