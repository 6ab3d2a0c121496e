package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	bus := NewBus(rdb, "", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	// Garbage on the channel is skipped, not fatal.
	mr.Publish(DefaultChannel, "{not json")

	sent := models.Message{ID: 1, ChatID: 2, SenderID: 3, Content: "hi", CreatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, bus.Publish(ctx, sent))

	select {
	case got := <-msgs:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.Content, got.Content)
		assert.True(t, sent.CreatedAt.Equal(got.CreatedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
