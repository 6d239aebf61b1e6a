// Command server runs the Inkwell blog.
//
// Configuration comes from the environment and an optional .env file; see
// internal/config for the variables. The minimum is SECRET_KEY.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/inkwell/internal/config"
	"github.com/sakif/inkwell/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	// === 1. CONFIGURATION ===
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger := cfg.Logger()
	slog.SetDefault(logger)

	// === 3. DATABASE DIRECTORY ===
	// SQLite creates the file but not its directory.
	if path := cfg.SQLitePath(); path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. SERVER ===
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
