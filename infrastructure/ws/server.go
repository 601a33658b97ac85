// Package ws exposes the relay over a WebSocket endpoint and serves
// stored uploads until their expiry.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/services"
	"chat-relay/storage"
)

// UploadsPath is the public route prefix under which stored assets are
// retrievable until the retention window deletes them.
const UploadsPath = "/uploads/"

const shutdownGracePeriod = 5 * time.Second

type Server struct {
	log        *slog.Logger
	service    services.IRelayService
	store      *storage.DiskStore
	upgrader   websocket.Upgrader
	bufferSize int
	readLimit  int64
}

func NewServer(log *slog.Logger, service services.IRelayService, store *storage.DiskStore,
	origins []string, connectionBufferSize int, maxFileSizeBytes int64) *Server {
	checker := newOriginChecker(log, origins)
	return &Server{
		log:        log,
		service:    service,
		store:      store,
		upgrader:   websocket.Upgrader{CheckOrigin: checker.check},
		bufferSize: connectionBufferSize,
		// Base64 inflates payloads by a third; double the cap leaves
		// room for the envelope without letting frames grow unbounded.
		readLimit: maxFileSizeBytes*2 + 64*1024,
	}
}

// Handler builds the route set. It is exported so tests can mount the
// relay on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc(UploadsPath, s.handleUpload)
	return mux
}

// Run serves until the context is canceled, then drains with a grace
// period.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: s.Handler()}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// handleWS upgrades the request, attaches a delivery sink, and runs the
// connection's pumps. It blocks until the client leaves.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.log.Debug("Upgrade failed", "error", err)
		return
	}
	socket.SetReadLimit(s.readLimit)

	connectionID := uuid.NewString()
	sink := NewConnSink(s.bufferSize)
	s.service.Connect(connectionID, sink)

	client := newClient(connectionID, socket, sink, s.service, s.log)

	ctx, cancel := context.WithCancel(context.Background())
	go client.write(ctx)
	client.read(ctx, cancel)
}

// handleUpload serves a stored asset inline. Once expiry deleted the
// backing file the same reference turns into a 404.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Base strips any path games; stored names never contain separators.
	storedName := filepath.Base(strings.TrimPrefix(r.URL.Path, UploadsPath))
	if storedName == "." || storedName == string(filepath.Separator) {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.store.Dir(), storedName)

	// Never expose a directory listing: the stored name is the only
	// access control on this route.
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if mtype, err := mimetype.DetectFile(path); err == nil {
		w.Header().Set("Content-Type", mtype.String())
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", storedName))
	http.ServeFile(w, r, path)
}
