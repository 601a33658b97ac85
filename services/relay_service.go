package services

import (
	"context"

	"chat-relay/contract"
	"chat-relay/pipeline"
)

// IRelayService is the single surface the transport talks to.
type IRelayService interface {
	Connect(connectionID string, sink contract.EventSink)
	SetName(ctx context.Context, connectionID, requestedName string)
	Broadcast(ctx context.Context, connectionID, body string)
	Direct(ctx context.Context, connectionID, recipientID, body string)
	ShareFile(ctx context.Context, upload pipeline.Upload)
	Disconnect(ctx context.Context, connectionID string)
}

type RelayService struct {
	registry contract.IRegistry
	router   contract.IRouter
	uploads  *pipeline.Pipeline
}

func NewRelayService(registry contract.IRegistry, router contract.IRouter,
	uploads *pipeline.Pipeline) *RelayService {
	return &RelayService{registry: registry, router: router, uploads: uploads}
}

func (s *RelayService) Connect(connectionID string, sink contract.EventSink) {
	s.registry.Attach(connectionID, sink)
}

func (s *RelayService) SetName(ctx context.Context, connectionID, requestedName string) {
	s.router.SetName(ctx, connectionID, requestedName)
}

func (s *RelayService) Broadcast(ctx context.Context, connectionID, body string) {
	s.router.BroadcastChat(ctx, connectionID, body)
}

func (s *RelayService) Direct(ctx context.Context, connectionID, recipientID, body string) {
	s.router.DirectChat(ctx, connectionID, recipientID, body)
}

func (s *RelayService) ShareFile(ctx context.Context, upload pipeline.Upload) {
	s.uploads.Handle(ctx, upload)
}

func (s *RelayService) Disconnect(ctx context.Context, connectionID string) {
	s.router.Disconnected(ctx, connectionID)
}
