package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golopo/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Config represents the complete application configuration
type Config struct {
	Paths    PathConfig `validate:"required"`
	Database DatabaseConfig
	Metrics  MetricsConfig
	API      APIConfig
	Logging  LoggingConfig `validate:"required"`
	Run      RunConfig     `validate:"required"`
}

// PathConfig holds file system paths
type PathConfig struct {
	CohortDir   string `validate:"required"`
	LabelColumn string `validate:"required"`
	GridFile    string
	ResultsDir  string `validate:"required"`
	ExcelReport string
}

// DatabaseConfig holds the optional PostgreSQL sink settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int `validate:"gte=0"`
}

// Enabled reports whether results should also go to PostgreSQL
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// MetricsConfig holds Prometheus export settings. Both are optional.
type MetricsConfig struct {
	Addr     string
	Textfile string
}

// APIConfig holds the run browser settings
type APIConfig struct {
	Addr string `validate:"required"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `validate:"required,oneof=ERROR WARN INFO DEBUG TRACE"`
	Format string `validate:"required,oneof=json console"`
}

// RunConfig holds run metadata
type RunConfig struct {
	CodeVersion string `validate:"required"`
}

var validate = validator.New()

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := FromEnv()
	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// FromEnv reads the environment without validating, so callers can apply
// overrides first
func FromEnv() *Config {
	return &Config{
		Paths: PathConfig{
			CohortDir:   getEnvOrDefault("COHORT_DIR", "./data/cohort"),
			LabelColumn: getEnvOrDefault("LABEL_COLUMN", "label"),
			GridFile:    getEnvOrDefault("GRID_FILE", ""),
			ResultsDir:  getEnvOrDefault("RESULTS_DIR", "./results"),
			ExcelReport: getEnvOrDefault("EXCEL_REPORT", ""),
		},
		Database: DatabaseConfig{
			URL:          getEnvOrDefault("DATABASE_URL", ""),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 4),
		},
		Metrics: MetricsConfig{
			Addr:     getEnvOrDefault("METRICS_ADDR", ""),
			Textfile: getEnvOrDefault("METRICS_TEXTFILE", ""),
		},
		API: APIConfig{
			Addr: getEnvOrDefault("API_ADDR", ":8080"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
			Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
		},
		Run: RunConfig{
			CodeVersion: getEnvOrDefault("CODE_VERSION", "dev"),
		},
	}
}

// Validate checks struct rules and reports the first offending fields
func Validate(config *Config) error {
	if config == nil {
		return errors.ConfigInvalid("configuration is nil")
	}
	if err := validate.Struct(config); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.ConfigInvalid(strings.Join(parts, "; "))
		}
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
