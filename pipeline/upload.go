// Package pipeline validates, stores, delivers, and expires uploaded
// binary payloads. Each stage fails independently: a validation failure
// leaves no partial storage, a storage failure leaves no dangling
// reference, and expiry outlives the uploading connection.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// Upload is a decoded inbound file transfer. Data holds raw bytes; the
// transport has already unwrapped any base64 envelope.
type Upload struct {
	OwnerID     string
	RecipientID string // empty for a broadcast
	FileName    string
	Data        []byte
}

type Pipeline struct {
	log         *slog.Logger
	registry    contract.IRegistry
	router      contract.IRouter
	store       contract.FileStore
	external    contract.Sink
	maxSize     int64
	allowed     map[string]struct{}
	baseURL     string
	sinkTimeout time.Duration
	now         func() time.Time
}

func NewPipeline(log *slog.Logger, registry contract.IRegistry, router contract.IRouter,
	store contract.FileStore, external contract.Sink,
	maxSize int64, allowed map[string]struct{}, baseURL string,
	sinkTimeout time.Duration) *Pipeline {
	return &Pipeline{
		log:         log,
		registry:    registry,
		router:      router,
		store:       store,
		external:    external,
		maxSize:     maxSize,
		allowed:     allowed,
		baseURL:     baseURL,
		sinkTimeout: sinkTimeout,
		now:         time.Now,
	}
}

// Handle runs one upload through validate, store, deliver, and expiry
// scheduling. Failures never escape: validation and storage errors are
// reported to the uploading connection only, an unregistered uploader
// is dropped silently.
func (p *Pipeline) Handle(ctx context.Context, up Upload) {
	owner, ok := p.registry.Session(up.OwnerID)
	if !ok {
		p.log.Debug("Dropping upload from unregistered connection", "connection_id", up.OwnerID)
		return
	}

	if relayErr := p.validate(up); relayErr != nil {
		p.reject(ctx, up.OwnerID, relayErr)
		return
	}

	extension := FileExtension(up.FileName)
	storedName, err := p.store.Save(extension, up.Data)
	if err != nil {
		p.log.Error("Upload storage failed", "file_name", up.FileName, "error", err)
		p.reject(ctx, up.OwnerID, errors.NewStorageError(err))
		return
	}

	asset := domain.FileAsset{
		OriginalName: up.FileName,
		StoredName:   storedName,
		SizeBytes:    int64(len(up.Data)),
		OwnerID:      up.OwnerID,
		OwnerName:    owner.DisplayName,
		StoredAt:     p.now().UTC(),
		RecipientID:  up.RecipientID,
	}
	p.deliver(ctx, owner, asset)

	p.store.ScheduleRemoval(storedName)
	p.forward(asset)
}

func (p *Pipeline) validate(up Upload) *errors.RelayError {
	if size := int64(len(up.Data)); size > p.maxSize {
		return errors.NewTooLarge(size, p.maxSize)
	}
	extension := FileExtension(up.FileName)
	if _, ok := p.allowed[extension]; !ok {
		return errors.NewTypeNotAllowed(extension)
	}
	return nil
}

// deliver sends the retrieval reference, never the raw bytes: clients
// fetch the asset over the static route instead of receiving a second
// copy on the realtime channel.
func (p *Pipeline) deliver(ctx context.Context, owner domain.Session, asset domain.FileAsset) {
	shared := event.FileShared{
		SenderName:   owner.DisplayName,
		OriginalName: asset.OriginalName,
		URL:          p.baseURL + asset.StoredName,
		At:           asset.StoredAt,
	}

	if asset.RecipientID == "" {
		p.router.DeliverToAll(ctx, shared)
		return
	}
	if !p.router.DeliverTo(ctx, asset.RecipientID, shared) {
		p.log.Debug("File recipient vanished before delivery",
			"recipient_id", asset.RecipientID, "stored_name", asset.StoredName)
	}
}

func (p *Pipeline) reject(ctx context.Context, ownerID string, relayErr *errors.RelayError) {
	p.router.DeliverTo(ctx, ownerID, event.UploadRejected{
		Code:    string(relayErr.Code),
		Message: relayErr.Message,
	})
}

// forward hands the stored asset's metadata to the external sink with
// its own deadline, detached from the upload context.
func (p *Pipeline) forward(asset domain.FileAsset) {
	if p.external == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.sinkTimeout)
		defer cancel()
		p.external.NotifyFileSaved(ctx, asset)
	}()
}
