package runtime

import (
	"chat-broker/domain"
	"context"
)

// LocalPresence derives "online in channel" from the registry of this process only.
type LocalPresence struct {
	registry *Registry
}

func NewLocalPresence(registry *Registry) LocalPresence {
	return LocalPresence{registry: registry}
}

func (p LocalPresence) Count(_ context.Context, channel domain.Channel) (int, error) {
	return p.registry.CountSubscribers(channel), nil
}

// Snapshot returns the local count of every channel.
func (p LocalPresence) Snapshot() map[domain.Channel]int {
	res := make(map[domain.Channel]int)
	for _, channel := range domain.Channels() {
		res[channel] = p.registry.CountSubscribers(channel)
	}
	return res
}

// LocalPublisher is the in-process fan-out path.
type LocalPublisher struct {
	registry *Registry
}

func NewLocalPublisher(registry *Registry) LocalPublisher {
	return LocalPublisher{registry: registry}
}

func (p LocalPublisher) Publish(ctx context.Context, message domain.Message) error {
	p.registry.Publish(ctx, message)
	return nil
}
