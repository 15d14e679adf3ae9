package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/bookvault/bookvault/pkg/bookvault/api"
	"github.com/bookvault/bookvault/pkg/bookvault/config"
)

// EnvConfig is the process environment for the server binary. Database and
// storage selection go through the config package's DATABASE_URL /
// STORAGE_URL scheme.
type EnvConfig struct {
	OwnerID string `env:"BOOKVAULT_OWNER_ID" env-default:""`
}

func main() {
	var envCfg EnvConfig
	if err := cleanenv.ReadEnv(&envCfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	if serverConfig.DatabaseType == "postgres" {
		if err := config.PingPostgres(serverConfig.DatabaseURL, serverConfig.DBSchema); err != nil {
			slog.Error("Database check failed", "err", err)
			os.Exit(1)
		}
	}

	svc, err := serverConfig.BuildService()
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	// Single-user deployments namespace storage keys by one owner id.
	ownerID := uuid.New()
	if envCfg.OwnerID != "" {
		ownerID, err = uuid.Parse(envCfg.OwnerID)
		if err != nil {
			slog.Error("Invalid BOOKVAULT_OWNER_ID", "err", err)
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status": "healthy", "environment": %q, "storage": %q}`,
			serverConfig.Environment, serverConfig.Storage.Type)
	})

	booksHandler := api.NewBooksHandler(svc, ownerID)
	r.Mount("/books", booksHandler.Routes())

	// The fs backend hands out same-origin /files/... paths; serve them
	// straight off the base directory.
	if serverConfig.Storage.Type == "fs" {
		baseDir, _ := serverConfig.Storage.Config["base_dir"].(string)
		if baseDir == "" {
			baseDir = "./data/storage"
		}
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(baseDir)))
		r.Get("/files/*", fileServer.ServeHTTP)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: r,
	}

	go func() {
		slog.Info("bookvault server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
		os.Exit(1)
	}

	slog.Info("Server exiting")
}
