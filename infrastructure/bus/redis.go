// Package bus spreads fan-out and presence across several broker processes
// through Redis pub/sub. A single process never needs it.
package bus

import (
	"chat-broker/api"
	"chat-broker/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	messagesPattern = "chat:messages:*"
	messagesPrefix  = "chat:messages:"
	presencePrefix  = "chat:presence:"
)

func InitRedis(ctx context.Context, address, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", address, err)
	}
	return client, nil
}

// RedisBus carries persisted messages between broker processes.
// Every node serves its own subscribers first and forwards a copy here,
// so a node ignores the messages it published itself.
type RedisBus struct {
	client  *redis.Client
	log     *slog.Logger
	nodeID  string
	timeout time.Duration
}

func NewRedisBus(client *redis.Client, log *slog.Logger, nodeID string, timeout time.Duration) *RedisBus {
	return &RedisBus{client: client, log: log, nodeID: nodeID, timeout: timeout}
}

func (b *RedisBus) NodeID() string { return b.nodeID }

// envelope tags a bus message with the node that persisted it.
type envelope struct {
	Node    string      `json:"node"`
	Message api.Message `json:"message"`
}

func (b *RedisBus) Publish(ctx context.Context, message domain.Message) error {
	payload, err := json.Marshal(envelope{Node: b.nodeID, Message: api.FromDomain(message)})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.client.Publish(ctx, messagesPrefix+string(message.Channel), payload).Err()
}

// Subscribe listens to every channel of the bus and skips this node's own messages.
// The returned channel is closed when ctx is done or the Redis connection is lost.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan domain.Message, error) {
	pubsub := b.client.PSubscribe(ctx, messagesPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis psubscribe: %w", err)
	}

	out := make(chan domain.Message)
	go func() {
		defer close(out)
		defer pubsub.Close()
		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				node, message, err := decode(raw.Payload)
				if err != nil {
					b.log.Warn("Dropping malformed bus message", "channel", raw.Channel, "error", err)
					continue
				}
				if node == b.nodeID {
					continue
				}
				select {
				case out <- message:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decode(payload string) (string, domain.Message, error) {
	var wire envelope
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return "", domain.Message{}, err
	}
	message, err := api.ToDomain(wire.Message)
	return wire.Node, message, err
}

// ReportPresence stores the local counts of this node under
// chat:presence:{node}. The key expires after ttl unless refreshed.
func (b *RedisBus) ReportPresence(ctx context.Context, counts map[domain.Channel]int, ttl time.Duration) error {
	key := presencePrefix + b.nodeID
	values := make(map[string]interface{}, len(counts))
	for channel, count := range counts {
		values[string(channel)] = count
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// RemotePresence sums the counts reported by the other nodes for one channel.
func (b *RedisBus) RemotePresence(ctx context.Context, channel domain.Channel) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	total := 0
	own := presencePrefix + b.nodeID
	iter := b.client.Scan(ctx, 0, presencePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == own || !strings.HasPrefix(key, presencePrefix) {
			continue
		}
		count, err := b.client.HGet(ctx, key, string(channel)).Int()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, iter.Err()
}

// Forget removes this node's presence, called on graceful shutdown.
func (b *RedisBus) Forget(ctx context.Context) error {
	return b.client.Del(ctx, presencePrefix+b.nodeID).Err()
}
