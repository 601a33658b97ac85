package ws

import (
	"context"

	"chat-relay/domain/event"
)

// ConnSink is the per-connection delivery endpoint. The router pushes
// events into the buffered channel; the connection's write pump drains
// it towards the browser.
type ConnSink struct {
	Events chan event.DomainEvent
}

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the router.
// Redirect the event through the concerned owner of the channel.
// A full buffer drops the event: a slow client must not stall the
// broadcaster.
func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
