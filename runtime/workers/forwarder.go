package workers

import (
	"chat-broker/contract"
	"chat-broker/domain"
	"chat-broker/errors"
	"context"
	"fmt"
	"log/slog"
)

// BusForwarder is the publisher of a clustered node.
// Local subscribers are served inside the append critical section, the bus
// only gets a queued copy so a slow or absent bus never holds a channel lock.
type BusForwarder struct {
	log    *slog.Logger
	local  contract.Publisher
	remote contract.Publisher
	outbox chan domain.Message
}

func NewBusForwarder(log *slog.Logger, local, remote contract.Publisher, capacity int) *BusForwarder {
	return &BusForwarder{
		log:    log,
		local:  local,
		remote: remote,
		outbox: make(chan domain.Message, max(capacity, 1)),
	}
}

// Publish never blocks on the bus. A full outbox drops the bus copy only.
func (f *BusForwarder) Publish(ctx context.Context, message domain.Message) error {
	if err := f.local.Publish(ctx, message); err != nil {
		return err
	}
	select {
	case f.outbox <- message:
		return nil
	default:
		return fmt.Errorf("%w: bus outbox full, %s not forwarded", errors.ErrDeliveryDropped, message.ID)
	}
}

// Run drains the outbox from a single goroutine, the per-channel order is the append order.
func (f *BusForwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case message := <-f.outbox:
			if err := f.remote.Publish(ctx, message); err != nil {
				f.log.Warn("Unable to forward message to the bus",
					"channel", message.Channel,
					"message_id", message.ID,
					"error", err)
			}
		}
	}
}
