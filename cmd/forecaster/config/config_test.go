package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HatiCode/ticketcast/pkg/models"
	"github.com/HatiCode/ticketcast/pkg/storage"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "environment variable set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "from-env",
			want:         "from-env",
		},
		{
			name:         "environment variable not set",
			key:          "NONEXISTENT_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "valid integer",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "invalid integer",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "not-a-number",
			want:         10,
		},
		{
			name:         "not set",
			key:          "NONEXISTENT_INT",
			defaultValue: 99,
			envValue:     "",
			want:         99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "valid duration",
			key:          "TEST_DURATION",
			defaultValue: 1 * time.Minute,
			envValue:     "5m",
			want:         5 * time.Minute,
		},
		{
			name:         "invalid duration",
			key:          "TEST_DURATION",
			defaultValue: 30 * time.Second,
			envValue:     "not-a-duration",
			want:         30 * time.Second,
		},
		{
			name:         "not set",
			key:          "NONEXISTENT_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		envValue string
		want     bool
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			if got := getEnvBool("TEST_BOOL", !tt.want); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

// s3Env sets the minimum environment for the default s3 backend.
func s3Env(t *testing.T) {
	t.Helper()
	t.Setenv("AWS_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("AWS_S3_BUCKET", "tickets")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
}

func parse(args ...string) (*Config, error) {
	return Parse(flag.NewFlagSet("forecaster", flag.ContinueOnError), args)
}

func TestConfig_Defaults(t *testing.T) {
	s3Env(t)

	cfg, err := parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Mode != ModeTrain {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeTrain)
	}
	if cfg.Horizon != 28 {
		t.Errorf("Horizon = %d, want 28", cfg.Horizon)
	}
	if cfg.Input != "clean-data.csv" || cfg.Output != "forecast-data.csv" {
		t.Errorf("Input/Output = %q/%q", cfg.Input, cfg.Output)
	}
	if cfg.DateColumn != "Date" || cfg.ValueColumn != "Tickets" || cfg.OutputColumn != "n_tickets" {
		t.Errorf("columns = %q %q %q", cfg.DateColumn, cfg.ValueColumn, cfg.OutputColumn)
	}
	if cfg.Order() != models.DefaultOrder {
		t.Errorf("Order() = %+v, want %+v", cfg.Order(), models.DefaultOrder)
	}
	if cfg.SeasonalOrder() != models.DefaultSeasonalOrder {
		t.Errorf("SeasonalOrder() = %+v, want %+v", cfg.SeasonalOrder(), models.DefaultSeasonalOrder)
	}
	if cfg.ModelKey != storage.DefaultKey {
		t.Errorf("ModelKey = %q, want %q", cfg.ModelKey, storage.DefaultKey)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "text")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	want := storage.Locator{
		Endpoint:  "http://minio:9000",
		AccessKey: "AKIA",
		SecretKey: "secret",
		Region:    storage.DefaultRegion,
		Bucket:    "tickets",
		Key:       storage.DefaultKey,
	}
	if cfg.Locator() != want {
		t.Errorf("Locator() = %+v, want %+v", cfg.Locator(), want)
	}
}

func TestConfig_CustomValues(t *testing.T) {
	s3Env(t)

	cfg, err := parse(
		"-mode=forecast",
		"-horizon=14",
		"-sarima-p=2",
		"-sarima-s=12",
		"-model-key=models/v2.bin",
		"-s3-bucket=other",
		"-input-format=json",
		"-input-records-path=data.rows",
		"-fill-missing",
		"-log-format=json",
		"-log-level=debug",
		"-pushgateway-url=http://pushgateway:9091",
	)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Mode != ModeForecast || cfg.Horizon != 14 {
		t.Errorf("Mode/Horizon = %q/%d", cfg.Mode, cfg.Horizon)
	}
	if cfg.Order().P != 2 || cfg.SeasonalOrder().S != 12 {
		t.Errorf("orders = %+v %+v", cfg.Order(), cfg.SeasonalOrder())
	}
	if loc := cfg.Locator(); loc.Bucket != "other" || loc.Key != "models/v2.bin" {
		t.Errorf("Locator() = %+v", loc)
	}
	opts := cfg.LoadOptions()
	if opts.Format != "json" || !opts.FillMissing || opts.RecordsPath != "data.rows" {
		t.Errorf("LoadOptions() = %+v", opts)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "json")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantMsg string
	}{
		{"unknown mode", nil, []string{"-mode=serve"}, "Mode"},
		{"zero horizon", nil, []string{"-horizon=0"}, "Horizon"},
		{"negative order", nil, []string{"-sarima-q=-1"}, "SARIMA_Q"},
		{"bad log level", nil, []string{"-log-level=trace"}, "LogLevel"},
		{"bad input format", nil, []string{"-input-format=xlsx"}, "InputFormat"},
		{"bad pushgateway url", nil, []string{"-pushgateway-url=not a url"}, "PushgatewayURL"},
		{"seasonal period too small", nil, []string{"-sarima-s=1"}, "seasonal period"},
		{"missing endpoint", map[string]string{"AWS_S3_ENDPOINT": ""}, nil, "AWS_S3_ENDPOINT"},
		{"missing bucket", map[string]string{"AWS_S3_BUCKET": ""}, nil, "AWS_S3_BUCKET"},
		{"forecast from memory", nil, []string{"-mode=forecast", "-storage=memory"}, "memory"},
		{"unknown storage", nil, []string{"-storage=gcs"}, "Storage"},
		{"tls cert without key", nil, []string{"-s3-cert-file=client.pem"}, "together"},
		{"missing ca bundle", map[string]string{"AWS_CA_BUNDLE": "/nonexistent/ca.pem"}, nil, "ca.pem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s3Env(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := parse(tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestConfig_CleanModeSkipsStorage(t *testing.T) {
	t.Setenv("AWS_S3_ENDPOINT", "")
	t.Setenv("AWS_S3_BUCKET", "")

	cfg, err := parse("-mode=clean", "-clean-input=raw.csv", "-clean-output=clean.csv")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.CleanInput != "raw.csv" || cfg.CleanOutput != "clean.csv" {
		t.Errorf("clean paths = %q/%q", cfg.CleanInput, cfg.CleanOutput)
	}
}

func TestConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forecaster.env")
	content := "AWS_S3_ENDPOINT=http://from-file:9000\nAWS_S3_BUCKET=from-file\nHORIZON=7\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ENV_FILE", path)
	t.Setenv("AWS_S3_BUCKET", "from-env")
	// godotenv never overrides a variable that is present, even empty.
	t.Setenv("AWS_S3_ENDPOINT", "")
	t.Setenv("HORIZON", "")
	os.Unsetenv("AWS_S3_ENDPOINT")
	os.Unsetenv("HORIZON")

	cfg, err := parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.S3Endpoint != "http://from-file:9000" {
		t.Errorf("S3Endpoint = %q, want value from env file", cfg.S3Endpoint)
	}
	if cfg.S3Bucket != "from-env" {
		t.Errorf("S3Bucket = %q, environment must take precedence over the env file", cfg.S3Bucket)
	}
	if cfg.Horizon != 7 {
		t.Errorf("Horizon = %d, want 7", cfg.Horizon)
	}
}

func TestConfig_EnvFileMissing(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	if _, err := parse(); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestConfig_RedisLocator(t *testing.T) {
	t.Setenv("AWS_S3_BUCKET", "")
	cfg, err := parse("-storage=redis", "-redis-addr=cache:6379", "-redis-password=pw")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	loc := cfg.Locator()
	if loc.Endpoint != "cache:6379" || loc.SecretKey != "pw" || loc.Bucket != "default" || loc.Key != storage.DefaultKey {
		t.Errorf("Locator() = %+v", loc)
	}
}
