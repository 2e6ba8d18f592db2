package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amer-bots/amerlink/cmd/amerlink/internal"
	"github.com/amer-bots/amerlink/pkg/binding"
	"github.com/amer-bots/amerlink/pkg/bus"
	"github.com/amer-bots/amerlink/pkg/channels"
	"github.com/amer-bots/amerlink/pkg/gateway"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/moderation"
	"github.com/amer-bots/amerlink/pkg/msglog"
	"github.com/amer-bots/amerlink/pkg/platform"
	"github.com/amer-bots/amerlink/pkg/relay"
	"github.com/amer-bots/amerlink/pkg/retention"
	"github.com/amer-bots/amerlink/pkg/store"
)

func serveCmd(debug bool) error {
	if debug {
		logger.SetDebug(true)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	db, err := binding.OpenDB(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("error opening binding database: %w", err)
	}

	memstore := store.New()
	msgBus := bus.NewMessageBus()
	manager := channels.NewManager(cfg.Channels, msgBus)

	registry := binding.NewRegistry(db, binding.WithNotifier(
		func(ctx context.Context, p platform.Platform, targetID, content string) error {
			return manager.Deliver(ctx, p, targetID, "text", content)
		}))

	messageLog := msglog.New(memstore)
	transport := relay.NewBusTransport(msgBus)
	notifier := relay.NewBanNotifier(registry, transport)
	pipeline := moderation.NewPipeline(memstore, cfg.Moderation, notifier)
	relayer := relay.New(registry, messageLog, pipeline, transport)

	srv := gateway.NewServer(*cfg, registry, messageLog, pipeline.Ledger(), memstore, manager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go manager.Dispatch(ctx)
	go relayer.Run(ctx, msgBus)

	if cfg.Retention.Enabled {
		sweeper := retention.NewSweeper(memstore, cfg.Retention.Schedule, cfg.Retention.MaxAgeDays)
		go sweeper.Run(ctx)
		fmt.Printf("Retention sweep scheduled: %s\n", cfg.Retention.Schedule)
	}

	if err := manager.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.ErrorCF("gateway", "http server error", map[string]any{"error": err.Error()})
		}
	}()
	fmt.Printf("Bridge listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WarnCF("gateway", "shutdown incomplete", map[string]any{"error": err.Error()})
	}
	cancel()
	manager.StopAll(shutdownCtx)
	msgBus.Close()
	fmt.Println("Bridge stopped")

	return nil
}
