package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type nopSink struct{}

func (nopSink) Consume(_ context.Context, _ event.DomainEvent) error { return nil }

func TestRegistry_Register_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()

	// Given an attached connection without a session
	registry.Attach(connectionID, nopSink{})
	req.Empty(registry.Snapshot())

	// When it registers a name
	session, renamed := registry.Register(connectionID, "alice")

	// Then the session exists and is visible in the snapshot
	req.False(renamed)
	req.Equal("alice", session.DisplayName)
	req.Equal(connectionID, session.ConnectionID)
	req.Equal(map[string]string{connectionID: "alice"}, registry.Snapshot())
}

func TestRegistry_Register_Empty_Name_Gets_Placeholder(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()

	session, _ := registry.Register(connectionID, "")

	req.Equal(domain.DefaultDisplayName, session.DisplayName)
}

func TestRegistry_Register_Twice_Is_A_Rename(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()

	// Given a registered session
	first, renamed := registry.Register(connectionID, "alice")
	req.False(renamed)

	// When the same connection registers again
	second, renamed := registry.Register(connectionID, "alys")

	// Then it is a rename keeping the original join time
	req.True(renamed)
	req.Equal("alys", second.DisplayName)
	req.Equal(first.JoinedAt, second.JoinedAt)
	req.Equal(map[string]string{connectionID: "alys"}, registry.Snapshot())
}

func TestRegistry_Detach_Removes_Session_And_Sink(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()

	// Given a registered connection
	registry.Attach(connectionID, nopSink{})
	registry.Register(connectionID, "alice")

	// When it detaches
	session, ok := registry.Detach(connectionID)

	// Then the prior session is returned and nothing remains
	req.True(ok)
	req.Equal("alice", session.DisplayName)
	req.Empty(registry.Snapshot())
	req.Empty(registry.Sinks())
	_, ok = registry.Sink(connectionID)
	req.False(ok)
}

func TestRegistry_Detach_Unknown_Connection_Is_A_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Disconnect events may arrive without a prior registration
	_, ok := registry.Detach(uuid.NewString())

	req.False(ok)
}

func TestRegistry_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	registry.Register(connectionID, "alice")

	// When a caller mutates the snapshot
	snapshot := registry.Snapshot()
	snapshot[connectionID] = "mallory"

	// Then the registry is unaffected
	req.Equal(map[string]string{connectionID: "alice"}, registry.Snapshot())
}

func TestRegistry_Sinks_Only_Contains_Attached_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink1, sink2 := nopSink{}, nopSink{}

	registry.Attach("conn-1", sink1)
	registry.Attach("conn-2", sink2)
	registry.Detach("conn-1")

	req.Len(registry.Sinks(), 1)
	found, ok := registry.Sink("conn-2")
	req.True(ok)
	req.Equal(sink2, found)
}
