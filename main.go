package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot"
	"github.com/blackbirdbot/cardbot/cardbot/catalog"
	"github.com/blackbirdbot/cardbot/cardbot/database"
	"github.com/blackbirdbot/cardbot/cardbot/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler(slog.LevelInfo)
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting CardBot economy service",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	manifestPath := flag.String("import-manifest", "", "path to a series manifest JSON file to import before starting")
	flag.Parse()

	cfg, err := cardbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}

	app := cardbot.New(*cfg, version, commit)
	app.DB = db
	defer app.Close()

	if err := app.Setup(); err != nil {
		logger.LogError("Failed to set up economy services", err)
		os.Exit(-1)
	}

	// Import before Start so a fresh database has series to load and the
	// draw engine picks up their weights.
	if *manifestPath != "" {
		if err := importManifests(ctx, app, *manifestPath); err != nil {
			logger.LogError("Failed to import series manifests", err,
				slog.String("path", *manifestPath))
			os.Exit(-1)
		}
	}

	if err := app.Start(ctx); err != nil {
		logger.LogError("Failed to start economy services", err)
		os.Exit(-1)
	}

	app.ExpiryWorker.Start()

	logger.LogSystem("Card economy is running. Press CTRL-C to exit.",
		slog.Int("series", len(app.Catalog.Series())))
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	logger.LogSystem("Shutting down...")
}

func importManifests(ctx context.Context, app *cardbot.App, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var manifests []catalog.Manifest
	if err := json.NewDecoder(file).Decode(&manifests); err != nil {
		return err
	}
	for _, m := range manifests {
		if err := app.Catalog.LoadSeries(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
