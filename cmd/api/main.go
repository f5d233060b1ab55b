package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golopo/internal"
	"golopo/internal/api"
	"golopo/internal/config"
	"golopo/internal/container"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// main serves stored runs read-only on API_ADDR. Runs come from PostgreSQL
// when DATABASE_URL is set, otherwise from RESULTS_DIR.
func main() {
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

	if err := serve(ctx, appConfig, logger); err != nil {
		logger.Error("api server failed", zap.Error(err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, appConfig *config.Config, logger *zap.Logger) error {
	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		return err
	}
	defer appContainer.Shutdown(context.Background())

	if appConfig.Database.Enabled() {
		db, err := container.OpenDatabase(appConfig.Database)
		if err != nil {
			return err
		}
		if err := appContainer.InitWithDatabase(ctx, db); err != nil {
			db.Close()
			return err
		}
	}

	server := api.NewServer(appConfig.API.Addr, appContainer.RunReader(), logger.Named("api"))
	return server.ListenAndServe(ctx)
}
