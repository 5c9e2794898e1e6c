package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/emberchat/ember/internal/broker"
	"github.com/emberchat/ember/internal/chat"
	"github.com/emberchat/ember/internal/config"
	"github.com/emberchat/ember/internal/handlers"
	"github.com/emberchat/ember/internal/logger"
	"github.com/emberchat/ember/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slg, err := logger.Setup(cfg)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	if err := storage.Initialize(cfg); err != nil {
		slg.Error("database init failed", "err", err)
		os.Exit(1)
	}
	if err := storage.Migrate(storage.GetDB()); err != nil {
		slg.Error("migration failed", "err", err)
		os.Exit(1)
	}
	store := storage.NewStore(storage.GetDB())

	hub := chat.NewHub(store, slg, chat.Options{
		DefaultDestructSeconds: cfg.Chat.DefaultDestructSeconds,
		SendQueueSize:          cfg.Chat.SendQueueSize,
		MaxMessageBytes:        cfg.Chat.MaxMessageBytes,
	})

	var bridge *broker.Bridge
	if cfg.Nats.Enabled {
		bridge, err = broker.New(cfg.Nats, slg)
		if err != nil {
			slg.Error("NATS bridge init failed", "err", err)
			os.Exit(1)
		}
		defer bridge.Close()
		if err := bridge.Start(context.Background(), hub); err != nil {
			slg.Error("NATS bridge start failed", "err", err)
			os.Exit(1)
		}
		hub.SetBus(bridge)
		slg.Info("NATS bridge enabled", "url", cfg.Nats.URL, "stream", cfg.Nats.Stream)
	}

	go hub.Run()

	// Re-arm persisted self-destruct countdowns lost to the restart.
	sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := hub.Resume(sweepCtx); err != nil {
		slg.Error("recovery sweep failed", "err", err)
	}
	cancel()

	app := fiber.New()
	app.Use(fiberlogger.New())
	handlers.New(hub, store, store, cfg).Register(app)

	go func() {
		slg.Info("listening", "addr", cfg.Server.ListenAddr)
		if err := app.Listen(cfg.Server.ListenAddr); err != nil {
			slg.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slg.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		slg.Error("shutdown error", "err", err)
	}
}
