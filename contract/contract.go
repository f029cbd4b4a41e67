//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-broker/domain"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type IVerifier interface {
	Verify(token string) (domain.Identity, error)
}

type IMessageRepository interface {
	Append(ctx context.Context, draft domain.Draft, committed func(domain.Message)) (domain.Message, error)
	ReadPage(ctx context.Context, channel domain.Channel, before *time.Time, limit int) ([]domain.Message, error)
}

// EventSink is the outbound side of one live connection.
// Consume must never block the caller.
type EventSink interface {
	Consume(ctx context.Context, message domain.Message) error
}

type IRegistry interface {
	Join(connID domain.ConnectionID, channel domain.Channel, sink EventSink)
	Leave(connID domain.ConnectionID, channel domain.Channel)
	LeaveAll(connID domain.ConnectionID)
	Publish(ctx context.Context, message domain.Message)
	CountSubscribers(channel domain.Channel) int
	Subscriptions(connID domain.ConnectionID) []domain.Subscription
}

// Publisher is the fan-out path taken after a successful append.
type Publisher interface {
	Publish(ctx context.Context, message domain.Message) error
}

type Presence interface {
	Count(ctx context.Context, channel domain.Channel) (int, error)
}
