package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/HuyVanh/my-backend-api-movie/docs"
	"github.com/HuyVanh/my-backend-api-movie/internal/app"
	"github.com/HuyVanh/my-backend-api-movie/internal/config"
)

// @title Movie Booking API
// @version 1.0
// @description Cinema ticket booking backend with seat holds and atomic seat transitions.
// @host localhost:8080
// @BasePath /
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
