package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mkettner/relaychat/internal/server"
)

func main() {
	// .env is optional; deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := server.NewLogger(cfg.Env)

	registry := server.NewRegistry(logger)
	sessions := server.NewSessionTable()
	broadcaster := server.NewBroadcaster(registry, sessions, logger)
	dispatcher := server.NewDispatcher(registry, sessions, broadcaster, logger)

	hub := server.NewHub(dispatcher, logger)
	go hub.Run()

	handlers := server.NewHandlers(hub, registry, dispatcher, cfg, logger)
	httpServer := server.CreateServer(cfg.Port, handlers.Routes())

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("relay listening", "addr", cfg.Port, "env", cfg.Env)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Error("hub shutdown", "error", err)
	}
	logger.Info("server exited")
}
