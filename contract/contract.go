//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

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

// EventSink is a delivery endpoint for one connected session.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the authoritative mapping of connections to sessions.
// A connection is attached on connect and only becomes a session once
// it registers a display name.
type IRegistry interface {
	Attach(connectionID string, sink EventSink)
	Detach(connectionID string) (domain.Session, bool)
	Register(connectionID, requestedName string) (domain.Session, bool)
	Session(connectionID string) (domain.Session, bool)
	Snapshot() map[string]string
	Sinks() []EventSink
	Sink(connectionID string) (EventSink, bool)
}

// IRouter fans chat events out to connected sessions. It never returns
// an error to the transport: every rejection is a silent drop.
type IRouter interface {
	SetName(ctx context.Context, connectionID, requestedName string)
	BroadcastChat(ctx context.Context, senderID, body string)
	DirectChat(ctx context.Context, senderID, recipientID, body string)
	Disconnected(ctx context.Context, connectionID string)
	DeliverToAll(ctx context.Context, e event.DomainEvent)
	DeliverTo(ctx context.Context, connectionID string, e event.DomainEvent) bool
}

// Sink forwards delivered events to an external collaborator
// (history store, word-count helper, local archive). Calls are
// fire-and-forget: implementations log failures and never block
// the delivery path.
type Sink interface {
	NotifyChatSaved(ctx context.Context, message domain.ChatMessage)
	NotifyFileSaved(ctx context.Context, asset domain.FileAsset)
}

// FileStore persists validated upload payloads under unguessable names.
type FileStore interface {
	Save(extension string, data []byte) (storedName string, err error)
	Remove(storedName string) error
	ScheduleRemoval(storedName string)
}
