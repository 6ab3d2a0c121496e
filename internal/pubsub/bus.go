// Package pubsub carries stored chat messages between processes over a
// single Redis channel. The REST server and every relay instance publish
// to it; every relay instance subscribes and fans out to its own rooms.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lalith-99/excursia/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "excursia:chat"

type Bus struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewBus(rdb *redis.Client, channel string, logger *zap.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{rdb: rdb, channel: channel, logger: logger}
}

func (b *Bus) Publish(ctx context.Context, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed. The returned
// channel is closed when ctx is cancelled or the connection drops.
// Payloads that do not decode are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan models.Message, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan models.Message, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				var msg models.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.logger.Warn("skipping malformed chat payload", zap.Error(err))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
