package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/advicechat/relay/internal/agentcore"
	"github.com/advicechat/relay/internal/auth"
	"github.com/advicechat/relay/internal/config"
	"github.com/advicechat/relay/internal/dispatch"
	"github.com/advicechat/relay/internal/frontdoor/chat"
	"github.com/advicechat/relay/internal/notes"
	"github.com/advicechat/relay/internal/profile"
	"github.com/advicechat/relay/internal/prompt"
	"github.com/advicechat/relay/internal/publish"
	"github.com/advicechat/relay/internal/relay"
	"github.com/advicechat/relay/internal/server"
	"github.com/advicechat/relay/internal/telemetry"
	"github.com/advicechat/relay/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := os.Getenv("RELAY_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("advice-relay", cfg.Tracing.Exporter, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	// Shared collaborators, constructed once per process
	runtime := agentcore.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.RuntimeARN,
		agentcore.WithAPIKey(cfg.Runtime.APIKey),
	)

	var signer publish.Signer
	if cfg.Events.SigningKey != "" {
		signer = publish.NewHMACSigner(cfg.Events.SigningKey, cfg.Events.SigningSecret)
	}
	publisher := publish.New(cfg.Events.Endpoint, signer, logger)

	orchestrator := relay.New(runtime, publisher, logger)

	dispatcher := dispatch.New(orchestrator, cfg.Relay.QueueSize, cfg.JobTimeout(), logger)
	dispatcher.Start(context.Background())

	noteStore, err := notes.NewStore(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open note store: %v", err)
	}
	defer noteStore.Close()

	profileStore, err := profile.NewStore(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open profile store: %v", err)
	}
	defer profileStore.Close()

	srv := server.New(cfg.Server.Port, logger, auth.NewAuthenticator(cfg.Server.APIKeys))

	chatHandler := chat.NewHandler(runtime, dispatcher, tokens.NewCounter(), cfg.Invoke.MaxPromptTokens, logger)
	srv.Router.Mount("/v1/chat", chatHandler.Routes())
	srv.Router.Mount("/v1/notes", notes.NewHandler(noteStore, logger).Routes())
	srv.Router.Mount("/v1/profiles", profile.NewHandler(profileStore, logger).Routes())
	srv.Router.Mount("/v1/prompts", prompt.NewHandler(profileStore, logger).Routes())
	srv.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("relay service started", slog.Int("port", cfg.Server.Port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("relay service stopped")
}
