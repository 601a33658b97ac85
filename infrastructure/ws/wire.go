package ws

import (
	"encoding/json"
	"time"

	"chat-relay/domain/event"
)

// envelope is the frame format in both directions:
// {"event": <name>, "data": <payload>}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Inbound event names.
const (
	evSetName       = "set-name"
	evChatBroadcast = "chat-broadcast"
	evChatDirect    = "chat-direct"
	evFileUpload    = "file-upload"
)

type setNamePayload struct {
	Name string `json:"name" validate:"max=64"`
}

type broadcastPayload struct {
	Body string `json:"body" validate:"required"`
}

type directPayload struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Body        string `json:"body" validate:"required"`
}

type uploadPayload struct {
	RecipientID string `json:"recipientId"`
	FileName    string `json:"fileName" validate:"required"`
	FileData    string `json:"fileData" validate:"required"`
}

// Outbound payload shapes.

type chatMessageOut struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Body       string `json:"body"`
	SentAt     string `json:"sentAt"`
}

type presenceOut struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
}

type fileMessageOut struct {
	SenderName string `json:"senderName"`
	FileName   string `json:"fileName"`
	FileURL    string `json:"fileUrl"`
	SentAt     string `json:"sentAt"`
}

type errorOut struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toEnvelope maps a domain event onto its wire frame.
func toEnvelope(e event.DomainEvent) outEnvelope {
	out := outEnvelope{Event: e.EventName()}

	switch evt := e.(type) {
	case event.ChatPosted:
		out.Data = chatMessageOut{
			SenderID:   evt.SenderID,
			SenderName: evt.SenderName,
			Body:       evt.Body,
			SentAt:     evt.At.Format(time.RFC3339),
		}
	case event.PresenceUpdated:
		out.Data = evt.Users
	case event.UserJoined:
		out.Data = presenceOut{ConnectionID: evt.ConnectionID, Name: evt.Name}
	case event.UserLeft:
		out.Data = presenceOut{ConnectionID: evt.ConnectionID, Name: evt.Name}
	case event.FileShared:
		out.Data = fileMessageOut{
			SenderName: evt.SenderName,
			FileName:   evt.OriginalName,
			FileURL:    evt.URL,
			SentAt:     evt.At.Format(time.RFC3339),
		}
	case event.UploadRejected:
		out.Data = errorOut{Code: evt.Code, Message: evt.Message}
	}
	return out
}
