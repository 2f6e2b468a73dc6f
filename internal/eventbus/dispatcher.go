// Package eventbus dispatches the core's observable domain events
// (conversationScheduledExplosion, conversationExpired) over an
// in-process Watermill pub/sub, mirroring the teacher's
// adapter/pubsub EventDispatcher shape but without a real broker:
// this core has no multi-node fan-out requirement of its own (the
// messaging SDK already handles cross-device sync).
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/xmtplabs/convos-core/internal/domain/event"
)

// Dispatcher publishes domain events and lets subscribers observe
// every event of a given Kind, regardless of which conversation it
// concerns.
type Dispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
	Subscribe(ctx context.Context, kind event.Kind) (<-chan *message.Message, error)
	Close() error
}

type dispatcher struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// New constructs an in-process dispatcher backed by
// watermill/pubsub/gochannel, the same publisher abstraction the
// teacher's EventDispatcher wraps.
func New(logger *slog.Logger) Dispatcher {
	gc := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	return &dispatcher{pubsub: gc, logger: logger}
}

func (d *dispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("eventbus: cannot publish nil event")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("conversationId", ev.GetConversationId().String())
	msg.Metadata.Set("routingKey", ev.GetRoutingKey())

	return d.pubsub.Publish(ev.GetKind().String(), msg)
}

func (d *dispatcher) Subscribe(ctx context.Context, kind event.Kind) (<-chan *message.Message, error) {
	return d.pubsub.Subscribe(ctx, kind.String())
}

func (d *dispatcher) Close() error {
	return d.pubsub.Close()
}
