package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// Broker carries envelopes between hub instances through a shared pub/sub backend.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks, handing every received envelope to deliver, until ctx
	// ends or the subscription fails. ready is called once the subscription is live.
	Subscribe(ctx context.Context, ready func(), deliver func(Envelope)) error
}

// RedisBroker implements Broker on a single redis pub/sub channel.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBroker creates a broker publishing on channel.
func NewRedisBroker(client *redis.Client, channel string, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, channel: channel, logger: logger}
}

type wireEnvelope struct {
	Room    string          `json:"room,omitempty"`
	Role    domain.Role     `json:"role,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, ready func(), deliver func(Envelope)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("realtime broker subscribed", zap.String("channel", b.channel))
	ready()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("subscription channel closed")
			}
			env, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("dropping malformed envelope", zap.Error(err))
				continue
			}
			deliver(env)
		}
	}
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, err
	}
	if wire.Event == "" {
		return Envelope{}, errors.New("envelope without event")
	}
	return Envelope{Room: wire.Room, Role: wire.Role, Event: wire.Event, Payload: wire.Payload}, nil
}
