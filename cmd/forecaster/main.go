// Command forecaster trains and runs the daily ticket forecaster.
//
// In train mode (the default) it runs one job that:
//  1. Loads the daily ticket table (CSV or JSON)
//  2. Fits a SARIMA(1,1,1)(1,1,1,7) model
//  3. Persists the fitted model to the object store
//  4. Forecasts the next 28 days
//  5. Exports the forecast table to CSV
//
// In forecast mode it fetches the persisted model and runs steps 4 and 5.
// In clean mode it forward-fills missing counts in a raw table and fills
// calendar gaps, producing the training table.
//
// Usage:
//
//	forecaster \
//	  -mode=train \
//	  -input=clean-data.csv \
//	  -output=forecast-data.csv
//
// Environment variables:
//
//	AWS_S3_ENDPOINT       - S3-compatible endpoint URL (required for s3 storage)
//	AWS_ACCESS_KEY_ID     - S3 access key ID
//	AWS_SECRET_ACCESS_KEY - S3 secret access key
//	AWS_S3_BUCKET         - Bucket the model is stored in (required for s3 storage)
//	AWS_CA_BUNDLE         - Extra CA bundle for the S3 endpoint (optional)
//	MODEL_KEY             - Object key (default: models/sarimax_model.joblib)
//	INPUT                 - Training table path or HTTP(S) URL (default: clean-data.csv)
//	STORAGE               - Model storage backend: s3, redis, memory (default: s3)
//	HORIZON               - Days to forecast (default: 28)
//	PUSHGATEWAY_URL       - Prometheus Pushgateway URL (optional)
//	ENV_FILE              - Dotenv file read before the environment (optional)
//	LOG_LEVEL             - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT            - Logging format: text, json (default: text)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HatiCode/ticketcast/cmd/forecaster/config"
	"github.com/HatiCode/ticketcast/cmd/forecaster/logger"
	"github.com/HatiCode/ticketcast/cmd/forecaster/metrics"
	"github.com/HatiCode/ticketcast/pkg/models"
	"github.com/HatiCode/ticketcast/pkg/series"
	"github.com/HatiCode/ticketcast/pkg/storage"
	"github.com/HatiCode/ticketcast/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		var se *StageError
		if errors.As(err, &se) {
			logger.Error("forecaster failed", "mode", cfg.Mode, "stage", string(se.Stage), "error", se.Err)
		} else {
			logger.Error("forecaster failed", "mode", cfg.Mode, "error", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting ticketcast forecaster",
		"version", version,
		"mode", cfg.Mode,
		"storage", cfg.Storage,
	)

	if cfg.Mode == config.ModeClean {
		return cleanTable(ctx, cfg.CleanInput, cfg.CleanOutput, cfg.LoadOptions(), logger)
	}

	objects, err := newObjectStore(cfg)
	if err != nil {
		return err
	}

	trainer := models.NewTrainer(cfg.Order(), cfg.SeasonalOrder(), logger)
	trainer.MaxIterations = cfg.MaxIterations

	m := metrics.New(trainer.Name())
	defer pushMetrics(cfg, m, logger)

	p := NewPipeline(
		newLoader(cfg),
		trainer,
		storage.NewModelStore(objects),
		NewCSVExporter(cfg.Output, cfg.OutputColumn, logger),
		cfg.Locator(),
		cfg.Horizon,
		logger,
		m,
	)

	if cfg.Mode == config.ModeForecast {
		_, err = p.Predict(ctx)
	} else {
		_, err = p.Run(ctx)
	}
	return err
}

// newLoader reads the training table from a file, or over HTTP when the
// input is a URL.
func newLoader(cfg *config.Config) DatasetLoader {
	if !series.IsURL(cfg.Input) {
		return &series.FileLoader{Path: cfg.Input, Options: cfg.LoadOptions()}
	}

	l := &series.HTTPLoader{URL: cfg.Input, Options: cfg.LoadOptions()}
	if cfg.InputToken != "" {
		l.Headers = map[string]string{"Authorization": "Bearer " + cfg.InputToken}
	}
	return l
}

func newObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage {
	case "s3":
		if !cfg.S3TLS.Enabled() {
			return storage.NewS3Store(), nil
		}
		tlsConfig, err := tls.NewClientTLSConfig(cfg.S3TLS)
		if err != nil {
			return nil, fmt.Errorf("s3 tls: %w", err)
		}
		return storage.NewS3StoreTLS(tlsConfig), nil
	case "redis":
		return storage.NewRedisStore(cfg.RedisDB, cfg.RedisTTL)
	case "memory":
		loc := cfg.Locator()
		return storage.NewMemoryStore(loc.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// pushMetrics pushes the run's metrics when a Pushgateway is configured.
// Push failures are logged and do not fail the run.
func pushMetrics(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Push(ctx, cfg.PushgatewayURL, cfg.PushJob); err != nil {
		logger.Warn("failed to push metrics", "error", err)
		return
	}
	logger.Debug("pushed metrics", "url", cfg.PushgatewayURL, "job", cfg.PushJob)
}
