package event

import "time"

// DomainEvent is anything the relay can push to a connected session.
// EventName is the name the transport uses on the wire.
type DomainEvent interface {
	EventName() string
}

type ChatPosted struct {
	SenderID   string
	SenderName string
	Body       string
	At         time.Time
}

func (ChatPosted) EventName() string { return "chat-message" }

// PresenceUpdated carries a full snapshot of connected sessions,
// keyed by connection ID.
type PresenceUpdated struct {
	Users map[string]string
}

func (PresenceUpdated) EventName() string { return "presence-update" }

type UserJoined struct {
	ConnectionID string
	Name         string
}

func (UserJoined) EventName() string { return "user-joined" }

type UserLeft struct {
	ConnectionID string
	Name         string
}

func (UserLeft) EventName() string { return "user-left" }

// FileShared references a stored upload. It carries a retrieval URL,
// never the raw bytes.
type FileShared struct {
	SenderName   string
	OriginalName string
	URL          string
	At           time.Time
}

func (FileShared) EventName() string { return "file-message" }

// UploadRejected is delivered to the uploading session only.
type UploadRejected struct {
	Code    string
	Message string
}

func (UploadRejected) EventName() string { return "error" }
