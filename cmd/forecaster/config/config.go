// Package config provides configuration parsing and management for the forecaster.
//
// It handles both command-line flags and environment variables, with flags taking
// precedence over environment variables. The Config struct contains all runtime
// configuration for the forecaster including:
//   - Run mode (train, forecast, clean)
//   - Input table location and layout (path or URL, format, column names)
//   - Model orders and optimizer budget
//   - Model storage backend and object locator (S3 endpoint, credentials, TLS, bucket, key)
//   - Forecast horizon and export destination
//   - Logging and metrics push configuration
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. A dotenv file named by ENV_FILE (never overrides the environment)
//  4. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	loc := cfg.Locator()
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/HatiCode/ticketcast/pkg/models"
	"github.com/HatiCode/ticketcast/pkg/series"
	"github.com/HatiCode/ticketcast/pkg/storage"
	"github.com/HatiCode/ticketcast/pkg/tls"
)

// Run modes.
const (
	ModeTrain    = "train"
	ModeForecast = "forecast"
	ModeClean    = "clean"
)

// Config holds all forecaster configuration.
type Config struct {
	Mode      string `validate:"oneof=train forecast clean"`
	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`

	Input            string `validate:"required"`
	InputFormat      string `validate:"omitempty,oneof=csv json"`
	InputRecordsPath string
	InputToken       string
	DateColumn       string `validate:"required"`
	ValueColumn      string `validate:"required"`
	DateLayout       string
	FillMissing      bool

	Output       string `validate:"required"`
	OutputColumn string `validate:"required"`
	Horizon      int    `validate:"min=1"`

	CleanInput  string
	CleanOutput string

	SARIMA_P      int `validate:"min=0"`
	SARIMA_D      int `validate:"min=0"`
	SARIMA_Q      int `validate:"min=0"`
	SARIMA_SP     int `validate:"min=0"`
	SARIMA_SD     int `validate:"min=0"`
	SARIMA_SQ     int `validate:"min=0"`
	SARIMA_S      int `validate:"min=0"`
	MaxIterations int `validate:"min=0"`

	Storage       string `validate:"oneof=s3 redis memory"`
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Region      string
	S3Bucket      string
	S3TLS         tls.Config
	ModelKey      string `validate:"required"`
	RedisAddr     string
	RedisPassword string
	RedisDB       int           `validate:"min=0"`
	RedisTTL      time.Duration `validate:"min=0"`

	PushgatewayURL string `validate:"omitempty,url"`
	PushJob        string `validate:"required"`
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
// Invalid configuration is reported on stderr and exits the process.
func ParseFlags() *Config {
	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	return cfg
}

// Parse defines the forecaster flags on fs, parses args and validates the
// result.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	cfg := &Config{}

	fs.StringVar(&cfg.Mode, "mode", getEnv("MODE", ModeTrain), "Run mode: train, forecast or clean")

	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.StringVar(&cfg.Input, "input", getEnv("INPUT", "clean-data.csv"), "Training table path or HTTP(S) URL (CSV or JSON)")
	fs.StringVar(&cfg.InputFormat, "input-format", getEnv("INPUT_FORMAT", ""), "Input format: csv or json (default: from file extension)")
	fs.StringVar(&cfg.InputRecordsPath, "input-records-path", getEnv("INPUT_RECORDS_PATH", ""), "gjson path to the record array in a JSON input (default: document root)")
	fs.StringVar(&cfg.InputToken, "input-token", getEnv("INPUT_TOKEN", ""), "Bearer token sent when the input is an HTTP(S) URL")
	fs.StringVar(&cfg.DateColumn, "date-column", getEnv("DATE_COLUMN", "Date"), "Name of the date column")
	fs.StringVar(&cfg.ValueColumn, "value-column", getEnv("VALUE_COLUMN", "Tickets"), "Name of the daily count column")
	fs.StringVar(&cfg.DateLayout, "date-layout", getEnv("DATE_LAYOUT", ""), "Go time layout tried before the built-in date layouts")
	fs.BoolVar(&cfg.FillMissing, "fill-missing", getEnvBool("FILL_MISSING", false), "Forward-fill missing counts while loading")

	fs.StringVar(&cfg.Output, "output", getEnv("OUTPUT", "forecast-data.csv"), "Forecast CSV destination (- for stdout)")
	fs.StringVar(&cfg.OutputColumn, "output-column", getEnv("OUTPUT_COLUMN", "n_tickets"), "Name of the forecast count column")
	fs.IntVar(&cfg.Horizon, "horizon", getEnvInt("HORIZON", models.DefaultHorizon), "Number of days to forecast")

	fs.StringVar(&cfg.CleanInput, "clean-input", getEnv("CLEAN_INPUT", "data/data.csv"), "Raw table read by clean mode")
	fs.StringVar(&cfg.CleanOutput, "clean-output", getEnv("CLEAN_OUTPUT", "data/clean-data.csv"), "Cleaned table written by clean mode")

	fs.IntVar(&cfg.SARIMA_P, "sarima-p", getEnvInt("SARIMA_P", models.DefaultOrder.P), "SARIMA non-seasonal AR order")
	fs.IntVar(&cfg.SARIMA_D, "sarima-d", getEnvInt("SARIMA_D", models.DefaultOrder.D), "SARIMA non-seasonal differencing order")
	fs.IntVar(&cfg.SARIMA_Q, "sarima-q", getEnvInt("SARIMA_Q", models.DefaultOrder.Q), "SARIMA non-seasonal MA order")
	fs.IntVar(&cfg.SARIMA_SP, "sarima-sp", getEnvInt("SARIMA_SP", models.DefaultSeasonalOrder.P), "SARIMA seasonal AR order")
	fs.IntVar(&cfg.SARIMA_SD, "sarima-sd", getEnvInt("SARIMA_SD", models.DefaultSeasonalOrder.D), "SARIMA seasonal differencing order")
	fs.IntVar(&cfg.SARIMA_SQ, "sarima-sq", getEnvInt("SARIMA_SQ", models.DefaultSeasonalOrder.Q), "SARIMA seasonal MA order")
	fs.IntVar(&cfg.SARIMA_S, "sarima-s", getEnvInt("SARIMA_S", models.DefaultSeasonalOrder.S), "SARIMA seasonal period (7 for daily data with a weekly pattern)")
	fs.IntVar(&cfg.MaxIterations, "max-iterations", getEnvInt("MAX_ITERATIONS", 0), "Optimizer iteration budget (0 uses the default)")

	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "s3"), "Model storage backend: s3, redis or memory")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", getEnv("AWS_S3_ENDPOINT", ""), "S3-compatible endpoint URL")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", getEnv("AWS_ACCESS_KEY_ID", ""), "S3 access key ID")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", getEnv("AWS_SECRET_ACCESS_KEY", ""), "S3 secret access key")
	fs.StringVar(&cfg.S3Region, "s3-region", getEnv("AWS_REGION", storage.DefaultRegion), "S3 region")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", getEnv("AWS_S3_BUCKET", ""), "Bucket the model is stored in")
	fs.StringVar(&cfg.S3TLS.CAFile, "s3-ca-file", getEnv("AWS_CA_BUNDLE", ""), "CA bundle trusted in addition to the system roots")
	fs.StringVar(&cfg.S3TLS.CertFile, "s3-cert-file", getEnv("S3_TLS_CERT_FILE", ""), "Client certificate presented to the S3 endpoint")
	fs.StringVar(&cfg.S3TLS.KeyFile, "s3-key-file", getEnv("S3_TLS_KEY_FILE", ""), "Client private key for -s3-cert-file")
	fs.StringVar(&cfg.ModelKey, "model-key", getEnv("MODEL_KEY", storage.DefaultKey), "Object key of the model artifact")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 0), "Redis model TTL (0 keeps models indefinitely)")

	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", getEnv("PUSHGATEWAY_URL", ""), "Prometheus Pushgateway URL (empty disables pushing)")
	fs.StringVar(&cfg.PushJob, "push-job", getEnv("PUSH_JOB", "ticketcast"), "Pushgateway job name")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules of the
// selected mode and storage backend.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Mode == ModeClean {
		if c.CleanInput == "" || c.CleanOutput == "" {
			return errors.New("invalid configuration: clean mode requires -clean-input and -clean-output")
		}
		return nil
	}

	seasonal := c.SARIMA_SP > 0 || c.SARIMA_SD > 0 || c.SARIMA_SQ > 0
	if seasonal && c.SARIMA_S < 2 {
		return fmt.Errorf("invalid configuration: seasonal period must be >= 2 when using seasonal components, got %d", c.SARIMA_S)
	}

	switch c.Storage {
	case "s3":
		if c.S3Endpoint == "" {
			return errors.New("invalid configuration: AWS_S3_ENDPOINT is required for s3 storage")
		}
		if c.S3Bucket == "" {
			return errors.New("invalid configuration: AWS_S3_BUCKET is required for s3 storage")
		}
		if err := c.S3TLS.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("invalid configuration: redis address cannot be empty")
		}
	case "memory":
		if c.Mode == ModeForecast {
			return errors.New("invalid configuration: forecast mode cannot read a model from memory storage")
		}
	}

	return nil
}

// Locator returns the object locator of the model artifact for the
// configured backend.
func (c *Config) Locator() storage.Locator {
	switch c.Storage {
	case "redis":
		return storage.Locator{
			Endpoint:  c.RedisAddr,
			SecretKey: c.RedisPassword,
			Bucket:    bucketOr(c.S3Bucket, "default"),
			Key:       c.ModelKey,
		}
	case "memory":
		return storage.Locator{Bucket: bucketOr(c.S3Bucket, "memory"), Key: c.ModelKey}
	default:
		return storage.Locator{
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			Key:       c.ModelKey,
		}
	}
}

func bucketOr(bucket, fallback string) string {
	if bucket == "" {
		return fallback
	}
	return bucket
}

// Order returns the configured non-seasonal order.
func (c *Config) Order() models.Order {
	return models.Order{P: c.SARIMA_P, D: c.SARIMA_D, Q: c.SARIMA_Q}
}

// SeasonalOrder returns the configured seasonal order.
func (c *Config) SeasonalOrder() models.SeasonalOrder {
	return models.SeasonalOrder{P: c.SARIMA_SP, D: c.SARIMA_SD, Q: c.SARIMA_SQ, S: c.SARIMA_S}
}

// LoadOptions returns the loader options for the training table.
func (c *Config) LoadOptions() series.Options {
	return series.Options{
		DateColumn:  c.DateColumn,
		ValueColumn: c.ValueColumn,
		DateLayout:  c.DateLayout,
		Format:      series.Format(c.InputFormat),
		RecordsPath: c.InputRecordsPath,
		FillMissing: c.FillMissing,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
