// Package domain contains core concepts of the relay.
// This file defines Session entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// DefaultDisplayName is assigned when a client registers with an
// empty or missing name.
const DefaultDisplayName = "Anonymous"

// Session is the live binding of a connection to a chosen display name.
type Session struct {
	ConnectionID string
	DisplayName  string
	JoinedAt     time.Time
}

// NewSession builds a Session, falling back to the placeholder name.
func NewSession(connectionID, requestedName string, joinedAt time.Time) Session {
	name := requestedName
	if name == "" {
		name = DefaultDisplayName
	}
	return Session{
		ConnectionID: connectionID,
		DisplayName:  name,
		JoinedAt:     joinedAt,
	}
}
