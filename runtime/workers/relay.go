package workers

import (
	"chat-broker/contract"
	"chat-broker/domain"
	"context"
	"fmt"
	"log/slog"
)

type BusSubscriber interface {
	Subscribe(ctx context.Context) (<-chan domain.Message, error)
}

// MessageReplicator keeps the local history complete when several nodes share a bus.
type MessageReplicator interface {
	Replicate(ctx context.Context, message domain.Message) (bool, error)
}

// RelayWorker republishes bus messages to the local registry.
// A single goroutine reads the bus, so the per-channel order of the bus is kept.
type RelayWorker struct {
	log        *slog.Logger
	bus        BusSubscriber
	registry   contract.IRegistry
	replicator MessageReplicator
}

// NewRelayWorker accepts a nil replicator when history is not replicated.
func NewRelayWorker(log *slog.Logger, bus BusSubscriber, registry contract.IRegistry,
	replicator MessageReplicator) *RelayWorker {
	return &RelayWorker{log: log, bus: bus, registry: registry, replicator: replicator}
}

// Run returns an error when the bus connection is lost so the supervisor restarts it.
// Messages published while disconnected are not replayed, subscribers recover
// them through history.
func (w *RelayWorker) Run(ctx context.Context) error {
	messages, err := w.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	w.log.Info("Relaying bus messages to local subscribers")
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("bus subscription closed")
			}
			if w.replicator != nil {
				if _, err := w.replicator.Replicate(ctx, message); err != nil {
					w.log.Warn("Unable to replicate bus message", "channel", message.Channel,
						"message_id", message.ID, "error", err)
				}
			}
			w.registry.Publish(ctx, message)
		}
	}
}
