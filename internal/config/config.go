package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	LogLevel    string

	EvalWorkers      int
	EvalPollInterval time.Duration
	SweepInterval    time.Duration // 0 disables the periodic sweep

	JWTPublicKey string // PEM, or a path to a PEM file
	JWTIssuer    string
	JWTAudience  string

	ReportRatePerMinute int
	ReportRateBurst     int

	RendererURL     string
	RendererTimeout time.Duration
	GCSBucket       string
	GCSCredentials  string
	SignedURLTTL    time.Duration

	OTLPEndpoint string
	OTLPInsecure bool
}

var defaults = map[string]any{
	"APP_ENV":                     "development",
	"LISTEN_ADDR":                 ":8080",
	"LOG_LEVEL":                   "info",
	"EVAL_WORKERS":                0,
	"EVAL_POLL_INTERVAL":          "500ms",
	"SWEEP_INTERVAL":              "0s",
	"REPORT_RATE_PER_MINUTE":      10,
	"REPORT_RATE_BURST":           3,
	"RENDERER_TIMEOUT":            "30s",
	"SIGNED_URL_TTL":              "15m",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
}

// Every key that may come from the environment or the .env file.
var keys = []string{
	"APP_ENV", "LISTEN_ADDR", "DATABASE_URL", "LOG_LEVEL",
	"EVAL_WORKERS", "EVAL_POLL_INTERVAL", "SWEEP_INTERVAL",
	"JWT_PUBLIC_KEY", "JWT_ISSUER", "JWT_AUDIENCE",
	"REPORT_RATE_PER_MINUTE", "REPORT_RATE_BURST",
	"RENDERER_URL", "RENDERER_TIMEOUT", "GCS_BUCKET", "GCS_CREDENTIALS_FILE", "SIGNED_URL_TTL",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
}

// Load reads configuration from the environment, falling back to envFile
// (typically ".env") when it exists, then to defaults. Environment wins.
func Load(envFile string) (Config, error) {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", k, err)
		}
	}
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read %s: %w", envFile, err)
			}
		}
	}

	cfg := Config{
		Env:                 v.GetString("APP_ENV"),
		ListenAddr:          v.GetString("LISTEN_ADDR"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		LogLevel:            strings.ToLower(v.GetString("LOG_LEVEL")),
		EvalWorkers:         v.GetInt("EVAL_WORKERS"),
		EvalPollInterval:    v.GetDuration("EVAL_POLL_INTERVAL"),
		SweepInterval:       v.GetDuration("SWEEP_INTERVAL"),
		JWTPublicKey:        v.GetString("JWT_PUBLIC_KEY"),
		JWTIssuer:           v.GetString("JWT_ISSUER"),
		JWTAudience:         v.GetString("JWT_AUDIENCE"),
		ReportRatePerMinute: v.GetInt("REPORT_RATE_PER_MINUTE"),
		ReportRateBurst:     v.GetInt("REPORT_RATE_BURST"),
		RendererURL:         v.GetString("RENDERER_URL"),
		RendererTimeout:     v.GetDuration("RENDERER_TIMEOUT"),
		GCSBucket:           v.GetString("GCS_BUCKET"),
		GCSCredentials:      v.GetString("GCS_CREDENTIALS_FILE"),
		SignedURLTTL:        v.GetDuration("SIGNED_URL_TTL"),
		OTLPEndpoint:        v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:        v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
	}
	if key := cfg.JWTPublicKey; key != "" && !strings.Contains(key, "-----BEGIN") {
		b, err := os.ReadFile(key)
		if err != nil {
			return cfg, fmt.Errorf("read JWT_PUBLIC_KEY file: %w", err)
		}
		cfg.JWTPublicKey = string(b)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if c.EvalWorkers < 0 {
		errs = append(errs, errors.New("EVAL_WORKERS must not be negative"))
	}
	if c.EvalWorkers > 0 && c.EvalPollInterval <= 0 {
		errs = append(errs, errors.New("EVAL_POLL_INTERVAL must be positive when workers are enabled"))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must not be negative"))
	}
	if c.ReportRatePerMinute < 1 || c.ReportRateBurst < 1 {
		errs = append(errs, errors.New("REPORT_RATE_PER_MINUTE and REPORT_RATE_BURST must be at least 1"))
	}
	if c.SignedURLTTL <= 0 || c.SignedURLTTL > 7*24*time.Hour {
		errs = append(errs, errors.New("SIGNED_URL_TTL must be between 1s and 7 days"))
	}
	if (c.RendererURL == "") != (c.GCSBucket == "") {
		errs = append(errs, errors.New("RENDERER_URL and GCS_BUCKET must be set together to enable pdf reports"))
	}
	return errors.Join(errs...)
}

// PDFEnabled reports whether rendered reports can be produced.
func (c Config) PDFEnabled() bool { return c.RendererURL != "" && c.GCSBucket != "" }

// Production reports whether APP_ENV names a production deployment.
func (c Config) Production() bool { return strings.EqualFold(c.Env, "production") }
