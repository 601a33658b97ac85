// Package runtime moves chat events from one connection to the others.
// It owns the registry and the delivery fan-out but no transport or
// storage logic.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Router delivers chat events to either all connected sessions or a
// single addressed recipient, and announces joins and departures.
//
// The router never surfaces an error to the transport layer: a message
// from an unregistered sender, or addressed to a vanished recipient, is
// dropped silently. This matches the relay's best-effort semantics.
type Router struct {
	log         *slog.Logger
	registry    contract.IRegistry
	external    contract.Sink
	sinkTimeout time.Duration
	now         func() time.Time
}

func NewRouter(log *slog.Logger, registry contract.IRegistry,
	external contract.Sink, sinkTimeout time.Duration) *Router {
	return &Router{
		log:         log,
		registry:    registry,
		external:    external,
		sinkTimeout: sinkTimeout,
		now:         time.Now,
	}
}

// SetName registers or renames the session bound to a connection and
// broadcasts the resulting presence snapshot. A first registration also
// announces the newcomer to the sessions that were already there.
func (r *Router) SetName(ctx context.Context, connectionID, requestedName string) {
	session, renamed := r.registry.Register(connectionID, requestedName)

	if !renamed {
		joined := event.UserJoined{ConnectionID: connectionID, Name: session.DisplayName}
		for _, sink := range r.sinksExcept(connectionID) {
			r.consume(ctx, sink, joined)
		}
	}

	r.DeliverToAll(ctx, event.PresenceUpdated{Users: r.registry.Snapshot()})
}

// BroadcastChat delivers a chat message to every connected session,
// including the sender. The sender sees its own echo through the same
// path as everyone else, so all clients observe one canonical rendering.
// A sender without a registered session is dropped without notice:
// clients must set a name before chatting.
func (r *Router) BroadcastChat(ctx context.Context, senderID, body string) {
	sender, ok := r.registry.Session(senderID)
	if !ok {
		r.log.Debug("Dropping broadcast from unregistered connection", "connection_id", senderID)
		return
	}

	message := domain.ChatMessage{
		SenderID:   senderID,
		SenderName: sender.DisplayName,
		Body:       body,
		SentAt:     r.now().UTC(),
	}
	r.DeliverToAll(ctx, toChatPosted(message))
	r.forwardChat(message)
}

// DirectChat delivers a message to exactly one addressed connection.
// The sender does not receive an echo; its client renders the outgoing
// message locally. Either side missing a registered session drops the
// message silently (the recipient may have just disconnected).
func (r *Router) DirectChat(ctx context.Context, senderID, recipientID, body string) {
	sender, ok := r.registry.Session(senderID)
	if !ok {
		r.log.Debug("Dropping direct message from unregistered connection", "connection_id", senderID)
		return
	}
	if _, ok := r.registry.Session(recipientID); !ok {
		r.log.Debug("Dropping direct message to vanished recipient",
			"sender_id", senderID, "recipient_id", recipientID)
		return
	}

	message := domain.ChatMessage{
		SenderID:    senderID,
		SenderName:  sender.DisplayName,
		Body:        body,
		SentAt:      r.now().UTC(),
		RecipientID: recipientID,
	}
	r.DeliverTo(ctx, recipientID, toChatPosted(message))
	r.forwardChat(message)
}

// Disconnected removes the connection from the registry, then announces
// the departure. Removal comes first so the leaving user never appears
// in their own departure snapshot.
func (r *Router) Disconnected(ctx context.Context, connectionID string) {
	session, ok := r.registry.Detach(connectionID)
	if !ok {
		// Connections that never registered leave without a trace.
		return
	}

	r.DeliverToAll(ctx, event.UserLeft{ConnectionID: connectionID, Name: session.DisplayName})
	r.DeliverToAll(ctx, event.PresenceUpdated{Users: r.registry.Snapshot()})
}

// DeliverToAll pushes an event to every connected sink.
func (r *Router) DeliverToAll(ctx context.Context, e event.DomainEvent) {
	for _, sink := range r.registry.Sinks() {
		r.consume(ctx, sink, e)
	}
}

// DeliverTo pushes an event to a single connection. It reports whether
// the connection was still there.
func (r *Router) DeliverTo(ctx context.Context, connectionID string, e event.DomainEvent) bool {
	sink, ok := r.registry.Sink(connectionID)
	if !ok {
		return false
	}
	r.consume(ctx, sink, e)
	return true
}

func (r *Router) consume(ctx context.Context, sink contract.EventSink, e event.DomainEvent) {
	if err := sink.Consume(ctx, e); err != nil {
		r.log.Debug("Delivery lost", "event", e.EventName(), "error", err)
	}
}

func (r *Router) sinksExcept(connectionID string) []contract.EventSink {
	excluded, _ := r.registry.Sink(connectionID)
	var sinks []contract.EventSink
	for _, sink := range r.registry.Sinks() {
		if sink != excluded {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// forwardChat hands the delivered message to the external sink.
// It runs detached from the caller's context with its own budget:
// external latency or failure must never gate client-visible delivery.
func (r *Router) forwardChat(message domain.ChatMessage) {
	if r.external == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.sinkTimeout)
		defer cancel()
		r.external.NotifyChatSaved(ctx, message)
	}()
}

func toChatPosted(m domain.ChatMessage) event.ChatPosted {
	return event.ChatPosted{
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Body:       m.Body,
		At:         m.SentAt,
	}
}
