package bus

import (
	"chat-broker/contract"
	"chat-broker/domain"
	"context"
)

// ClusterPresence adds the counts of the other nodes to the local one.
// It is as volatile as the local count, a dead node stays counted until its key expires.
type ClusterPresence struct {
	local contract.Presence
	bus   *RedisBus
}

func NewClusterPresence(local contract.Presence, bus *RedisBus) ClusterPresence {
	return ClusterPresence{local: local, bus: bus}
}

func (p ClusterPresence) Count(ctx context.Context, channel domain.Channel) (int, error) {
	local, err := p.local.Count(ctx, channel)
	if err != nil {
		return 0, err
	}
	remote, err := p.bus.RemotePresence(ctx, channel)
	if err != nil {
		return 0, err
	}
	return local + remote, nil
}
