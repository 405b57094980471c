package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkhub/internal/app"
	"github.com/MrSnakeDoc/linkhub/internal/config"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = log.Sync() }()

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("startup failed", logger.Error(err))
		return err
	}
	return a.Run()
}
