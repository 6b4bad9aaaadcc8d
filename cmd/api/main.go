package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/narrative-engine/internal/config"
	"github.com/jwebster45206/narrative-engine/internal/engine"
	"github.com/jwebster45206/narrative-engine/internal/handlers"
	"github.com/jwebster45206/narrative-engine/internal/logger"
	"github.com/jwebster45206/narrative-engine/internal/middleware"
	"github.com/jwebster45206/narrative-engine/internal/services"
	"github.com/jwebster45206/narrative-engine/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Narrative Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"choice_provider", cfg.ChoiceProvider,
		"time_tracking", cfg.EnableTimeTracking)

	store := storage.NewRedisStorage(cfg.RedisURL, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := store.WaitForConnection(storageCtx); err != nil {
		storageCancel()
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	storageCancel()
	log.Info("Storage connection established successfully")

	var generator services.ChoiceGenerator
	switch cfg.ChoiceProvider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			log.Error("Gemini API key is required when using gemini provider")
			os.Exit(1)
		}
		g, err := services.NewGeminiService(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.Error("Failed to initialize Gemini service", "error", err)
			os.Exit(1)
		}
		generator = g
		log.Info("Using Gemini choice provider", "model", cfg.GeminiModel)
	case config.ProviderMock:
		generator = services.NewMockChoiceGenerator()
		log.Info("Using mock choice provider")
	default:
		log.Error("Invalid choice provider specified", "provider", cfg.ChoiceProvider, "supported", []string{config.ProviderGemini, config.ProviderMock})
		os.Exit(1)
	}

	processor := engine.NewProcessor(store, generator, engine.Options{
		AutoGenerateChoices: cfg.AutoGenerateChoices,
		NumChoices:          cfg.NumChoices,
		EnableTimeTracking:  cfg.EnableTimeTracking,
		TimeProgressionRate: cfg.TimeProgressionRate,
	}, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, log)
	mux.Handle("/health", healthHandler)

	sessionHandler := handlers.NewSessionHandler(processor, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := generator.Close(); err != nil {
		log.Error("Error closing choice generator", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
