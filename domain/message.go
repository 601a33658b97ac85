// Package domain contains core concepts of the relay.
// This file defines chat messages and stored file assets.
// Both are immutable once built.
package domain

import "time"

// ChatMessage is an ephemeral chat event. The relay never retains it;
// it is delivered once and optionally forwarded to an external sink.
type ChatMessage struct {
	SenderID    string
	SenderName  string
	Body        string
	SentAt      time.Time
	RecipientID string // empty for a broadcast
}

// FileAsset describes a stored upload. StoredName is never derived from
// the caller-supplied original name.
type FileAsset struct {
	OriginalName string
	StoredName   string
	SizeBytes    int64
	OwnerID      string
	OwnerName    string
	StoredAt     time.Time
	RecipientID  string // empty for a broadcast
}
