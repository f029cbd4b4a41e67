package sink

import (
	"chat-broker/domain"
	"chat-broker/errors"
	"context"
	"sync"
)

// ConnectionSink is the bounded outbound queue of one live connection.
// The fan-out writes into it, the transport handler drains it.
type ConnectionSink struct {
	mu       sync.Mutex
	closed   bool
	messages chan domain.Message
	done     chan struct{}
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &ConnectionSink{
		messages: make(chan domain.Message, bufferSize),
		done:     make(chan struct{}),
	}
}

// Consume is called by fanout
// Redirect the message through the concerned owner of the channel
// The transport handler will take it from now.
// It never blocks: when the queue is full the oldest queued message is dropped
// and ErrDeliveryDropped is returned so the registry can log it.
func (s *ConnectionSink) Consume(_ context.Context, message domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSessionClosed
	}

	select {
	case s.messages <- message:
		return nil
	default:
	}

	// Full: evict one, the reader may have raced us and freed a slot already
	select {
	case <-s.messages:
	default:
	}
	select {
	case s.messages <- message:
	default:
	}
	return errors.ErrDeliveryDropped
}

// Messages is drained by exactly one reader, the transport handler.
func (s *ConnectionSink) Messages() <-chan domain.Message {
	return s.messages
}

// Done is closed once the sink is closed.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent. Queued messages are left for garbage collection.
func (s *ConnectionSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
