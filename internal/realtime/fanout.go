package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultFanoutChannel is the pub/sub channel every node listens on.
const DefaultFanoutChannel = "helpdesk:realtime"

type fanoutEnvelope struct {
	ConnID string          `json:"connId"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisFanout is a Sender for multi-node deployments: frames are published on
// a Redis channel and each node hands them to its own Hub.
type RedisFanout struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

// NewRedisFanout builds the fan-out; channel defaults to DefaultFanoutChannel.
func NewRedisFanout(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisFanout {
	if channel == "" {
		channel = DefaultFanoutChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFanout{client: client, channel: channel, hub: hub, logger: logger}
}

// Send publishes frame for connID. Only the node holding connID delivers it.
func (f *RedisFanout) Send(ctx context.Context, connID string, frame []byte) error {
	raw, err := json.Marshal(fanoutEnvelope{ConnID: connID, Frame: frame})
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, raw).Err()
}

// Run consumes the channel until ctx is cancelled. ready is closed once the
// subscription is confirmed.
func (f *RedisFanout) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var envelope fanoutEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				f.logger.Warn("invalid fan-out envelope", zap.Error(err))
				continue
			}
			f.hub.Deliver(envelope.ConnID, envelope.Frame)
		}
	}
}
