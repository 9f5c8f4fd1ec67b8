package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/team4job/marketplace-backend/internal/app"
	"github.com/team4job/marketplace-backend/internal/cli"
	"github.com/team4job/marketplace-backend/internal/config"
	"github.com/team4job/marketplace-backend/internal/db"
	"github.com/team4job/marketplace-backend/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.BuildCLI(openRuntime)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Log.WithError(err).Error("marketctl: команда завершилась с ошибкой")
		stop()
		os.Exit(1)
	}
}

func openRuntime(ctx context.Context) (*cli.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	logger.SetTextFormatter()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &cli.Runtime{
		Migrate: func(ctx context.Context) ([]string, error) {
			return db.RunMigrations(ctx, a.DB, cfg.MigrationsPath)
		},
		Monitor:    a.Monitor,
		Payments:   a.Payments,
		Flags:      a.Flags,
		Reputation: a.Reputation,
		Close:      a.Close,
	}, nil
}
