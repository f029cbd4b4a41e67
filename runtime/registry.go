package runtime

import (
	"chat-broker/contract"
	"chat-broker/domain"
	"chat-broker/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"
)

type member struct {
	sink  contract.EventSink
	since time.Time
}

// shard owns the subscribers of one channel, its lock is never shared with another channel.
type shard struct {
	mu      sync.RWMutex
	members map[domain.ConnectionID]member
}

// Registry tracks which live connections listen to which channel.
// Shards are created once for every channel of the enumeration and the shard
// map is never written afterwards, so there is no registry-wide lock.
type Registry struct {
	log    *slog.Logger
	now    func() time.Time
	shards map[domain.Channel]*shard
}

func NewRegistry(log *slog.Logger) *Registry {
	shards := make(map[domain.Channel]*shard)
	for _, channel := range domain.Channels() {
		shards[channel] = &shard{members: make(map[domain.ConnectionID]member)}
	}
	return &Registry{log: log, now: time.Now, shards: shards}
}

// Join registers interest of a connection in a channel.
// Joining twice keeps the first subscription and its establishment time.
func (r *Registry) Join(connID domain.ConnectionID, channel domain.Channel, sink contract.EventSink) {
	s, ok := r.shards[channel]
	if !ok {
		r.log.Warn("Join on unknown channel ignored", "connection_id", connID, "channel", channel)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[connID]; exists {
		return
	}
	s.members[connID] = member{sink: sink, since: r.now().UTC()}
}

func (r *Registry) Leave(connID domain.ConnectionID, channel domain.Channel) {
	s, ok := r.shards[channel]
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, connID)
}

// LeaveAll is called on disconnect. Each shard is visited under its own lock.
func (r *Registry) LeaveAll(connID domain.ConnectionID) {
	for _, channel := range domain.Channels() {
		r.Leave(connID, channel)
	}
}

// Publish delivers a message to every connection currently subscribed to its channel.
// Sinks never block, a failed delivery only concerns that connection and is logged.
func (r *Registry) Publish(ctx context.Context, message domain.Message) {
	s, ok := r.shards[message.Channel]
	if !ok {
		return
	}
	s.mu.RLock()
	targets := make(map[domain.ConnectionID]contract.EventSink, len(s.members))
	for connID, m := range s.members {
		targets[connID] = m.sink
	}
	s.mu.RUnlock()

	for connID, sink := range targets {
		err := sink.Consume(ctx, message)
		switch {
		case err == nil:
		case stderrors.Is(err, errors.ErrSessionClosed):
			r.log.Debug("Skipping closed connection", "connection_id", connID)
		default:
			r.log.Warn("Live delivery failed",
				"connection_id", connID,
				"channel", message.Channel,
				"message_id", message.ID,
				"kind", errors.KindOf(err),
				"error", err)
		}
	}
}

// CountSubscribers is a snapshot, it may be stale as soon as it returns.
func (r *Registry) CountSubscribers(channel domain.Channel) int {
	s, ok := r.shards[channel]
	if !ok {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Subscriptions lists the channels a connection is currently subscribed to.
func (r *Registry) Subscriptions(connID domain.ConnectionID) []domain.Subscription {
	var res []domain.Subscription
	for _, channel := range domain.Channels() {
		s := r.shards[channel]
		s.mu.RLock()
		if m, ok := s.members[connID]; ok {
			res = append(res, domain.Subscription{
				ConnectionID:  connID,
				Channel:       channel,
				EstablishedAt: m.since,
			})
		}
		s.mu.RUnlock()
	}
	return res
}
