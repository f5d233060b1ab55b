package main

import (
	"context"
	"fmt"
	"os"

	"golopo/internal"
	"golopo/internal/migration"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: migrate <postgres://...|sqlite:path> [up|status]")
		os.Exit(2)
	}

	databaseURL := os.Args[1]
	command := "up"
	if len(os.Args) > 2 {
		command = os.Args[2]
	}

	logger := internal.NewDefaultLogger()
	defer logger.Sync()

	if err := migrate(context.Background(), logger, databaseURL, command); err != nil {
		logger.Error("migration failed", zap.String("command", command), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func migrate(ctx context.Context, logger *zap.Logger, databaseURL, command string) error {
	db, err := migration.Open(databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	runner := migration.NewRunner()

	switch command {
	case "up":
		if err := runner.Run(ctx, db); err != nil {
			return err
		}
		logger.Info("schema is up to date", zap.String("version", runner.Version()))
		return nil
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			return err
		}
		applied := 0
		for _, s := range statuses {
			if s.Applied {
				applied++
			}
			logger.Info("migration",
				zap.String("version", s.Version),
				zap.String("name", s.Name),
				zap.Bool("applied", s.Applied),
				zap.Bool("drifted", s.Drifted),
			)
		}
		logger.Info("migration status", zap.Int("applied", applied), zap.Int("total", len(statuses)))
		return nil
	default:
		return fmt.Errorf("unknown command %q, expected up or status", command)
	}
}
