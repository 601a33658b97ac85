package archive

import (
	"context"

	"github.com/google/uuid"

	"chat-relay/domain"
)

// Sink adapts the Archive to the external Sink contract.
// Write failures are logged and swallowed like any other sink.
type Sink struct {
	archive *Archive
}

func NewSink(archive *Archive) *Sink {
	return &Sink{archive: archive}
}

func (s *Sink) NotifyChatSaved(_ context.Context, message domain.ChatMessage) {
	record := Record{
		ID:        uuid.New(),
		Author:    message.SenderName,
		Content:   message.Body,
		Recipient: message.RecipientID,
		At:        message.SentAt,
	}
	if err := s.archive.store(PrefixChat, record); err != nil {
		s.archive.log.Warn("Chat record not archived", "error", err)
	}
}

func (s *Sink) NotifyFileSaved(_ context.Context, asset domain.FileAsset) {
	record := Record{
		ID:        uuid.New(),
		Author:    asset.OwnerName,
		Content:   asset.StoredName,
		Recipient: asset.RecipientID,
		SizeBytes: asset.SizeBytes,
		At:        asset.StoredAt,
	}
	if err := s.archive.store(PrefixFile, record); err != nil {
		s.archive.log.Warn("File record not archived", "error", err)
	}
}
