package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ytgrab/backend"
	"ytgrab/internal/api"
)

func main() {
	// Load config (env vars override file config)
	config, err := backend.LoadConfigWithEnv()
	if err != nil {
		backend.InitLogger(config.LogLevel, config.LogFormat)
		backend.Logger.Warn("could not load config, using defaults", "err", err)
		config = backend.GetDefaultConfig()
	}
	logger := backend.InitLogger(config.LogLevel, config.LogFormat)
	logger.Info("ytgrab server starting", "version", api.AppVersion)

	// Ensure output directory exists
	outputDir := config.OutputDirectory()
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		logger.Warn("could not create output directory", "dir", outputDir, "err", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := backend.NewApp(ctx, config, logger)

	server := api.NewServer(api.Services{
		Config:     config,
		Queue:      app.Queue,
		History:    app.History,
		Analyzer:   app.Analyzer,
		Classifier: app.Classifier,
		Status:     app.Status,
		Logger:     logger,
	})

	// Start queue processing
	app.Queue.StartProcessing()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down, waiting for the active download to finish")
		app.Queue.StopProcessing()
		cancel()
		if err := server.Shutdown(); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("server listening", "port", config.Port, "downloads", outputDir)
	if err := server.Listen(":" + config.Port); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
