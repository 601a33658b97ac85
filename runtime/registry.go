package runtime

import (
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Registry is the authoritative mapping of connections to sessions.
//
// A connection is Attached as soon as the transport accepts it, which
// installs its delivery sink. It only becomes a Session once the client
// registers a display name. Both maps are guarded by a single RWMutex so
// every presence snapshot observes a consistent state: no mutation can
// interleave between the session lookup and the sink lookup.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	sinks    map[string]contract.EventSink
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]domain.Session),
		sinks:    make(map[string]contract.EventSink),
		now:      time.Now,
	}
}

// Attach installs the delivery sink for a freshly accepted connection.
func (r *Registry) Attach(connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connectionID] = sink
}

// Detach removes a connection entirely: its sink and, if it ever
// registered, its session. It reports the prior session so the caller
// can announce the departure. Detaching an unknown connection is a
// no-op; disconnects may arrive without a prior registration.
func (r *Registry) Detach(connectionID string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, connectionID)
	session, ok := r.sessions[connectionID]
	if ok {
		delete(r.sessions, connectionID)
	}
	return session, ok
}

// Register creates or renames the session bound to a connection.
// An empty requested name falls back to the placeholder. The returned
// bool reports whether a prior session was replaced (a rename).
func (r *Registry) Register(connectionID, requestedName string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, renamed := r.sessions[connectionID]
	session := domain.NewSession(connectionID, requestedName, r.now().UTC())
	if renamed {
		session.JoinedAt = prior.JoinedAt
	}
	r.sessions[connectionID] = session
	return session, renamed
}

func (r *Registry) Session(connectionID string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[connectionID]
	return session, ok
}

// Snapshot returns a consistent copy of the presence mapping
// (connection ID to display name) for broadcast.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(map[string]string, len(r.sessions))
	for id, session := range r.sessions {
		users[id] = session.DisplayName
	}
	return users
}

// Sinks returns the delivery sinks of every connected session at call
// time. The slice is a snapshot: delivery never holds the registry lock.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.sinks))
	for _, sink := range r.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) Sink(connectionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[connectionID]
	return sink, ok
}
