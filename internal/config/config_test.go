package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.EvalWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.EvalPollInterval)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval)
	assert.Equal(t, 10, cfg.ReportRatePerMinute)
	assert.Equal(t, 3, cfg.ReportRateBurst)
	assert.Equal(t, 15*time.Minute, cfg.SignedURLTTL)
	assert.False(t, cfg.PDFEnabled())
	assert.False(t, cfg.Production())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/civicwatch")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("EVAL_WORKERS", "4")
	t.Setenv("SWEEP_INTERVAL", "1h")
	t.Setenv("RENDERER_URL", "http://renderer:9000")
	t.Setenv("GCS_BUCKET", "civicwatch-reports")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.Equal(t, "postgres://localhost/civicwatch", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.EvalWorkers)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.True(t, cfg.PDFEnabled())
	assert.True(t, cfg.OTLPInsecure)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LISTEN_ADDR=:9090\nREPORT_RATE_BURST=7\n"), 0o600))
	t.Setenv("REPORT_RATE_BURST", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.ReportRateBurst, "environment wins over the file")
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestLoad_JWTKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt.pem")
	pem := "-----BEGIN PUBLIC KEY-----\nMFkw\n-----END PUBLIC KEY-----\n"
	require.NoError(t, os.WriteFile(path, []byte(pem), 0o600))
	t.Setenv("JWT_PUBLIC_KEY", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, pem, cfg.JWTPublicKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"negative workers", "EVAL_WORKERS", "-1", "EVAL_WORKERS"},
		{"zero rate", "REPORT_RATE_PER_MINUTE", "0", "REPORT_RATE_PER_MINUTE"},
		{"ttl too long", "SIGNED_URL_TTL", "240h", "SIGNED_URL_TTL"},
		{"renderer without bucket", "RENDERER_URL", "http://renderer", "GCS_BUCKET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
