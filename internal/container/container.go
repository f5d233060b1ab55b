package container

import (
	"context"
	"fmt"
	"time"

	"golopo/adapters/excel"
	"golopo/adapters/filesink"
	"golopo/adapters/postgres"
	"golopo/app"
	"golopo/domain/evaluation"
	"golopo/internal/classify"
	"golopo/internal/config"
	"golopo/internal/errors"
	"golopo/internal/metrics"
	"golopo/internal/migration"
	"golopo/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB            *sqlx.DB
	Recorder      *metrics.Recorder
	MetricsServer *metrics.Server

	// Sources and sinks
	CohortSource ports.CohortSource
	JSONSink     *filesink.JSONSink
	WorkbookSink *excel.WorkbookSink
	RunRepo      *postgres.RunRepository

	// Evaluation components
	Classifiers *classify.Registry
}

// New creates a new dependency injection container. The database is optional
// and attached later with InitWithDatabase.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{
		Config:      cfg,
		Logger:      logger,
		Recorder:    metrics.New(cfg.Metrics.Addr != ""),
		Classifiers: classify.DefaultRegistry(),
		JSONSink:    filesink.NewJSONSink(cfg.Paths.ResultsDir),
	}

	cohortConfig := excel.DefaultCohortConfig(cfg.Paths.CohortDir)
	cohortConfig.LabelColumn = cfg.Paths.LabelColumn
	c.CohortSource = excel.NewCohortSource(cohortConfig, logger.Named("cohort"))

	if cfg.Paths.ExcelReport != "" {
		c.WorkbookSink = excel.NewWorkbookSink(cfg.Paths.ExcelReport)
	}
	if cfg.Metrics.Addr != "" {
		c.MetricsServer = metrics.NewServer(cfg.Metrics.Addr, c.Recorder, logger.Named("metrics"))
	}
	return c, nil
}

// OpenDatabase connects to the configured PostgreSQL database
func OpenDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// InitWithDatabase runs migrations and enables the PostgreSQL sink
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.PingContext(ctx); err != nil {
		return errors.DatabaseError("database connection test failed", err)
	}
	c.DB = db

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		return err
	}
	c.RunRepo = postgres.NewRunRepository(db)

	c.Logger.Info("database initialized", zap.String("schema_version", runner.Version()))
	return nil
}

// Sinks returns the enabled result sinks: JSON always, then the workbook and
// PostgreSQL when configured.
func (c *Container) Sinks() []ports.ResultSink {
	sinks := []ports.ResultSink{c.JSONSink}
	if c.WorkbookSink != nil {
		sinks = append(sinks, c.WorkbookSink)
	}
	if c.RunRepo != nil {
		sinks = append(sinks, c.RunRepo)
	}
	return sinks
}

// RunReader serves stored runs from PostgreSQL when connected, otherwise
// from the JSON results directory.
func (c *Container) RunReader() ports.RunReader {
	if c.RunRepo != nil {
		return c.RunRepo
	}
	return c.JSONSink
}

// Grid loads GRID_FILE, or the default grid when none is configured
func (c *Container) Grid() (evaluation.Grid, error) {
	if c.Config.Paths.GridFile == "" {
		return config.DefaultGrid(), nil
	}
	return config.LoadGrid(c.Config.Paths.GridFile)
}

// EvaluationService wires the service over the current sources and sinks
func (c *Container) EvaluationService() *app.EvaluationService {
	return app.NewEvaluationService(
		c.CohortSource,
		c.Classifiers,
		c.Sinks(),
		c.Recorder,
		c.Logger,
		c.Config.Run.CodeVersion,
	)
}

// StartMetrics starts the metrics server when METRICS_ADDR is set
func (c *Container) StartMetrics() {
	if c.MetricsServer != nil {
		c.MetricsServer.Start()
	}
}

// Shutdown gracefully shuts down all components. The metrics textfile is
// written last so it includes the final run outcome.
func (c *Container) Shutdown(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.MetricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		keep(c.MetricsServer.Shutdown(shutdownCtx))
		cancel()
	}
	if path := c.Config.Metrics.Textfile; path != "" {
		keep(c.Recorder.WriteTextfile(path))
	}
	if c.DB != nil {
		keep(c.DB.Close())
	}
	_ = c.Logger.Sync()
	return firstErr
}
