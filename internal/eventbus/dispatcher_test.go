package eventbus_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xmtplabs/convos-core/internal/domain/event"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSubscribeByKindObservesEventsAcrossConversations(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, event.ConversationExpired)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), event.NewExpiredEvent(model.ConversationId("c1"))))
	require.NoError(t, bus.Publish(context.Background(), event.NewExpiredEvent(model.ConversationId("c2"))))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-msgs:
			seen[msg.Metadata.Get("conversationId")] = true
			msg.Ack()
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	require.True(t, seen["c1"])
	require.True(t, seen["c2"])
}

func TestSubscribersAreScopedByKind(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduled, err := bus.Subscribe(ctx, event.ConversationScheduledExplosion)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), event.NewExpiredEvent(model.ConversationId("c1"))))

	select {
	case <-scheduled:
		t.Fatal("did not expect a conversationExpired event on the scheduled-explosion subscription")
	case <-time.After(50 * time.Millisecond):
	}
}
