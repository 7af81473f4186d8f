// Command migrate connects to the configured database and brings its
// schema up to date — the library's equivalent of the teacher's cmd/app
// startup path, narrowed to just the database half: this project has no
// HTTP surface to start (spec's Non-goals exclude a REST/GraphQL API).
package main

import (
	"log/slog"
	"os"

	"github.com/cohub/reservations/internal/config"
	"github.com/cohub/reservations/internal/database"
)

func main() {
	logLevel := slog.LevelInfo
	cfg := config.Load()
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("reservations: invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("reservations: failed to connect to database", "error", err)
		os.Exit(1)
	}

	logger.Info("reservations: schema migrated")

	if err := database.CloseConnection(db); err != nil {
		logger.Error("reservations: failed to close database connection", "error", err)
		os.Exit(1)
	}
}
