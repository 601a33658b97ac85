package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"
	"chat-relay/runtime"
)

var defaultAllowed = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "pdf": {}, "txt": {}, "mp4": {},
}

type pipelineFixture struct {
	pipeline *Pipeline
	registry *runtime.Registry
	router   *mocks.MockIRouter
	store    *mocks.MockFileStore
	external *mocks.MockSink
}

func newFixture(t *testing.T, maxSize int64) pipelineFixture {
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := runtime.NewRegistry()
	router := mocks.NewMockIRouter(ctrl)
	store := mocks.NewMockFileStore(ctrl)
	external := mocks.NewMockSink(ctrl)

	p := NewPipeline(log, registry, router, store, external,
		maxSize, defaultAllowed, "/uploads/", time.Second)

	return pipelineFixture{pipeline: p, registry: registry, router: router, store: store, external: external}
}

func TestPipeline_Rejects_Disallowed_Extension_Before_Any_Write(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 1024)
	f.registry.Register("conn-a", "alice")

	// Then only the uploader hears about it; the store is never touched
	f.router.EXPECT().
		DeliverTo(gomock.Any(), "conn-a", gomock.Any()).
		Do(func(_ context.Context, _ string, e event.DomainEvent) {
			rejected, ok := e.(event.UploadRejected)
			req.True(ok)
			req.Equal("TypeNotAllowed", rejected.Code)
		}).
		Return(true).
		Times(1)

	// When an executable is uploaded
	f.pipeline.Handle(context.Background(), Upload{
		OwnerID:  "conn-a",
		FileName: "totally-safe.exe",
		Data:     []byte("MZ..."),
	})
}

func TestPipeline_Rejects_Oversize_Payload_Before_Any_Write(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 1024)
	f.registry.Register("conn-a", "alice")

	f.router.EXPECT().
		DeliverTo(gomock.Any(), "conn-a", gomock.Any()).
		Do(func(_ context.Context, _ string, e event.DomainEvent) {
			rejected, ok := e.(event.UploadRejected)
			req.True(ok)
			req.Equal("TooLarge", rejected.Code)
		}).
		Return(true).
		Times(1)

	f.pipeline.Handle(context.Background(), Upload{
		OwnerID:  "conn-a",
		FileName: "huge.txt",
		Data:     bytes.Repeat([]byte("x"), 2048),
	})
}

func TestPipeline_Drops_Upload_From_Unregistered_Connection(t *testing.T) {
	f := newFixture(t, 1024)

	// No expectations: any router/store/sink call fails the test.
	f.pipeline.Handle(context.Background(), Upload{
		OwnerID:  "conn-ghost",
		FileName: "file.txt",
		Data:     []byte("hello"),
	})
}

func TestPipeline_Stores_Delivers_And_Schedules_Expiry(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 1024)
	f.registry.Register("conn-a", "alice")
	payload := []byte("file content")

	f.store.EXPECT().
		Save("txt", payload).
		Return("a1b2c3.txt", nil).
		Times(1)

	f.router.EXPECT().
		DeliverToAll(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e event.DomainEvent) {
			shared, ok := e.(event.FileShared)
			req.True(ok)
			req.Equal("alice", shared.SenderName)
			req.Equal("notes.txt", shared.OriginalName)
			req.Equal("/uploads/a1b2c3.txt", shared.URL)
		}).
		Times(1)

	f.store.EXPECT().ScheduleRemoval("a1b2c3.txt").Times(1)

	saved := make(chan domain.FileAsset, 1)
	f.external.EXPECT().
		NotifyFileSaved(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, asset domain.FileAsset) {
			saved <- asset
		}).
		Times(1)

	f.pipeline.Handle(context.Background(), Upload{
		OwnerID:  "conn-a",
		FileName: "notes.txt",
		Data:     payload,
	})

	select {
	case asset := <-saved:
		req.Equal("a1b2c3.txt", asset.StoredName)
		req.Equal(int64(len(payload)), asset.SizeBytes)
		req.Equal("conn-a", asset.OwnerID)
		req.Equal("alice", asset.OwnerName)
	case <-time.After(time.Second):
		req.Fail("external sink was never notified")
	}
}

func TestPipeline_Addressed_Upload_Goes_To_Recipient_Only(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 1024)
	f.registry.Register("conn-a", "alice")

	f.store.EXPECT().Save("png", gomock.Any()).Return("deadbeef.png", nil)
	f.store.EXPECT().ScheduleRemoval("deadbeef.png")
	f.external.EXPECT().NotifyFileSaved(gomock.Any(), gomock.Any()).AnyTimes()

	f.router.EXPECT().
		DeliverTo(gomock.Any(), "conn-b", gomock.Any()).
		Do(func(_ context.Context, _ string, e event.DomainEvent) {
			_, ok := e.(event.FileShared)
			req.True(ok)
		}).
		Return(true).
		Times(1)

	f.pipeline.Handle(context.Background(), Upload{
		OwnerID:     "conn-a",
		RecipientID: "conn-b",
		FileName:    "cat.png",
		Data:        []byte{0x89, 0x50, 0x4e, 0x47},
	})
}

func TestPipeline_Reports_Storage_Failure_To_Uploader_Only(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 1024)
	f.registry.Register("conn-a", "alice")

	f.store.EXPECT().
		Save("txt", gomock.Any()).
		Return("", fmt.Errorf("disk full"))

	// No ScheduleRemoval, no NotifyFileSaved: the pipeline stops here.
	f.router.EXPECT().
		DeliverTo(gomock.Any(), "conn-a", gomock.Any()).
		Do(func(_ context.Context, _ string, e event.DomainEvent) {
			rejected, ok := e.(event.UploadRejected)
			req.True(ok)
			req.Equal("StorageError", rejected.Code)
		}).
		Return(true).
		Times(1)

	f.pipeline.Handle(context.Background(), Upload{
		OwnerID:  "conn-a",
		FileName: "notes.txt",
		Data:     []byte("content"),
	})
}
