package sink

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Multi fans a notification out to several sinks in order. Each sink
// already swallows its own failures, so Multi has nothing to collect.
type Multi struct {
	sinks []contract.Sink
}

func NewMulti(sinks ...contract.Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) NotifyChatSaved(ctx context.Context, message domain.ChatMessage) {
	for _, s := range m.sinks {
		s.NotifyChatSaved(ctx, message)
	}
}

func (m *Multi) NotifyFileSaved(ctx context.Context, asset domain.FileAsset) {
	for _, s := range m.sinks {
		s.NotifyFileSaved(ctx, asset)
	}
}
