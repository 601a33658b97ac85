package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/archive"
	"chat-relay/contract"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/pipeline"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"
	"chat-relay/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like archive cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	allowed, err := internal.ExtensionAllowList(config.AllowedExtensions)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// 2. Storage area
	store, err := storage.NewDiskStore(config.UploadDir, config.RetentionWindow, log)
	if err != nil {
		return fmt.Errorf("upload storage failed: %w", err)
	}

	// 3. External sinks (all optional, all best-effort)
	var externalSinks []contract.Sink
	if config.HistoryAPIURL != "" {
		externalSinks = append(externalSinks,
			sink.NewHistorySink(log, config.HistoryAPIURL, config.WordCountAPIURL, config.SinkTimeout))
	}
	if config.ArchiveDir != "" {
		chatArchive, err := archive.Open(config.ArchiveDir, log)
		if err != nil {
			return fmt.Errorf("archive opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing archive...")
			_ = chatArchive.Close()
		}()
		externalSinks = append(externalSinks, archive.NewSink(chatArchive))
	}
	var external contract.Sink
	if len(externalSinks) > 0 {
		external = sink.NewMulti(externalSinks...)
	}

	// 4. Relay core
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, external, config.SinkTimeout)
	uploads := pipeline.NewPipeline(log, registry, router, store, external,
		config.MaxFileSizeBytes, allowed, ws.UploadsPath, config.SinkTimeout)
	relay := services.NewRelayService(registry, router, uploads)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewJanitorWorker(log, store, config.JanitorInterval))
	sup.Add(workers.NewHeartbeatWorker(log, config.HeartbeatInterval))

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 7. Server
	server := ws.NewServer(log, relay, store,
		internal.Origins(config.AllowedOrigin),
		config.ConnectionBufferSize, config.MaxFileSizeBytes)

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	if err := server.Run(ctx, addr); err != nil {
		return err
	}

	// 8. Final Cleanup
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
