package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lecture-chat/auth"
	"lecture-chat/contract"
	"lecture-chat/domain/event"
	"lecture-chat/gateway"
	"lecture-chat/internal"
	"lecture-chat/moderation"
	"lecture-chat/observability"
	"lecture-chat/repositories"
	"lecture-chat/runtime"
	"lecture-chat/runtime/workers"
	"lecture-chat/sink"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. This pattern is preferred over calling
// os.Exit or panic directly because it ensures all defers (like database
// cleanup) execute before the program exits, and it decouples the
// initialization logic from the main entry point.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	replacementChar, err := CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation
	wordlists, err := moderation.LoadWordlists()
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("%d censored words loaded [%s]",
		len(wordlists.Words), strings.Join(wordlists.Languages, ",")))

	moderator, err := moderation.NewModerator(wordlists.Words, replacementChar)
	if err != nil {
		return err
	}

	// 4. Supervision, registry & pipeline
	sup := workers.NewSupervisor(log, config.RestartInterval)
	monitor := observability.NewMonitor(log)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)

	events := make(chan event.DomainEvent, config.BufferSize)
	registry := runtime.NewRegistry(log, sup, events, monitor, &moderator, runtime.ActorConfig{
		BufferSize:     config.BufferSize,
		SnapshotWindow: config.SnapshotWindow,
		DedupWindow:    config.DedupWindow,
		AckTimeout:     config.AckTimeout,
		PresenceGrace:  config.PresenceGrace,
		IdleRetirement: config.IdleRetirement,
	})
	monitor.SetGaugeSource(registry)

	permanentSinks := []contract.EventSink{
		sink.NewDiskSink(messageRepository, log),
	}
	fanout := workers.NewEventFanout(log, registry, events, monitor, permanentSinks, config.SinkTimeout)
	sup.Add(fanout, monitor)

	// 5. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry.Start(ctx)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. Debug surface
	debugServer := internal.NewDebugServer(log, monitor, messageRepository)
	debugServer.Start(config.DebugPort)

	// 7. Gateway HTTP server
	verifier := auth.NewVerifier([]byte(config.AuthSecret))
	enrollment := internal.NewEnrollmentClient(log, config.EnrollmentURL, config.EnrollmentTimeout)
	gw := gateway.NewGateway(log, registry, enrollment, verifier, config.ConnectionBufferSize)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: gw.Handler()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting gateway server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("gateway server error: %w", err)
		}
	}()

	// 8. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")
	return nil
}
