package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golopo/app"
	"golopo/internal"
	"golopo/internal/config"
	"golopo/internal/container"
	"golopo/internal/errors"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// main runs one evaluation grid configured entirely from the environment
// (optionally via .env) and exits non-zero when the run or a sink fails.
func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := internal.NewLogger(internal.ParseLogLevel(appConfig.Logging.Level), appConfig.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, appConfig, logger))
}

func run(ctx context.Context, appConfig *config.Config, logger *zap.Logger) int {
	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		logger.Error("failed to create application container", zap.Error(err))
		return 1
	}
	defer appContainer.Shutdown(context.Background())

	if appConfig.Database.Enabled() {
		db, err := container.OpenDatabase(appConfig.Database)
		if err != nil {
			logger.Error("failed to open database", zap.Error(err))
			return 1
		}
		if err := appContainer.InitWithDatabase(ctx, db); err != nil {
			db.Close()
			logger.Error("failed to initialize database", zap.Error(err))
			return 1
		}
	}

	grid, err := appContainer.Grid()
	if err != nil {
		logger.Error("failed to load grid", zap.Error(err))
		return 1
	}

	appContainer.StartMetrics()
	result, err := appContainer.EvaluationService().Run(ctx, app.EvaluationRequest{Grid: grid})
	if result == nil {
		logger.Error("evaluation failed", zap.String("code", errors.GetCode(err)), zap.Error(err))
		return 1
	}

	paths, reportErr := app.WriteReport(appConfig.Paths.ResultsDir, result.Manifest, result.Aggregate)
	if reportErr != nil {
		logger.Error("failed to write report", zap.Error(reportErr))
	}
	logger.Info("run complete",
		zap.String(internal.FieldRun, result.Manifest.RunID.String()),
		zap.Strings("persisted", result.Persisted),
		zap.Strings("reports", paths),
		zap.Int64("runtime_ms", result.RuntimeMs),
	)
	if err != nil {
		logger.Error("some sinks failed", zap.String("code", errors.GetCode(err)), zap.Error(err))
		return 1
	}
	if reportErr != nil {
		return 1
	}
	return 0
}
