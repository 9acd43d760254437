// Command server runs the StreetBall API.
//
// Configuration is read from an optional .env file, a YAML file
// (-config, STREETBALL_CONFIG, ./config.yaml or /etc/streetball/config.yaml)
// and STREETBALL_* environment variables. PORT sets the listen port.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/streetball/api/pkg/app"
	"github.com/streetball/api/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return &app.StartupError{Stage: app.StageConfig, Err: err}
	}

	logger := app.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}
