package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT",
	"IDWORKER_DIR",
	"IDWORKER_HOST_ADDRESS",
	"IDWORKER_PRINCIPAL",
	"WORKER_ID_BITS",
	"COORDINATOR_URL",
	"COORDINATOR_DISABLED",
	"COORDINATOR_TIMEOUT",
	"COORDINATOR_MAX_RETRIES",
	"STATE_DIR",
	"STATE_KEY",
	"SNAPSHOT_INTERVAL",
	"S3_BUCKET",
	"S3_REGION",
	"S3_ENDPOINT",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"LOG_FORMAT",
	"LOG_LEVEL",
}

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 18001, cfg.Port)
	assert.Empty(t, cfg.Dir)
	assert.Empty(t, cfg.HostAddress)
	assert.Empty(t, cfg.Principal)
	assert.Equal(t, uint(10), cfg.WorkerIDBits)
	assert.Equal(t, "http://id.worker.server:18001", cfg.CoordinatorURL)
	assert.False(t, cfg.CoordinatorDisabled)
	assert.Equal(t, 3*time.Second, cfg.CoordinatorTimeout)
	assert.Equal(t, 1, cfg.CoordinatorMaxRetries)
	assert.Equal(t, "/tmp/idworker-coordinator", cfg.StateDir)
	assert.Equal(t, "roster.json", cfg.StateKey)
	assert.Equal(t, 10*time.Second, cfg.SnapshotInterval)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.CoordinatorEnabled())
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("IDWORKER_DIR", "/var/lib/idworkers")
	t.Setenv("IDWORKER_HOST_ADDRESS", "10.1.2.3")
	t.Setenv("IDWORKER_PRINCIPAL", "svc")
	t.Setenv("WORKER_ID_BITS", "5")
	t.Setenv("COORDINATOR_URL", "http://coordinator.internal:9000")
	t.Setenv("COORDINATOR_DISABLED", "true")
	t.Setenv("COORDINATOR_TIMEOUT", "750ms")
	t.Setenv("COORDINATOR_MAX_RETRIES", "3")
	t.Setenv("STATE_DIR", "/custom/state")
	t.Setenv("STATE_KEY", "custom.json")
	t.Setenv("SNAPSHOT_INTERVAL", "1m")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/var/lib/idworkers", cfg.Dir)
	assert.Equal(t, "10.1.2.3", cfg.HostAddress)
	assert.Equal(t, "svc", cfg.Principal)
	assert.Equal(t, uint(5), cfg.WorkerIDBits)
	assert.Equal(t, "http://coordinator.internal:9000", cfg.CoordinatorURL)
	assert.True(t, cfg.CoordinatorDisabled)
	assert.False(t, cfg.CoordinatorEnabled())
	assert.Equal(t, 750*time.Millisecond, cfg.CoordinatorTimeout)
	assert.Equal(t, 3, cfg.CoordinatorMaxRetries)
	assert.Equal(t, "/custom/state", cfg.StateDir)
	assert.Equal(t, "custom.json", cfg.StateKey)
	assert.Equal(t, time.Minute, cfg.SnapshotInterval)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"port not a number", "PORT", "not-a-number", nil},
		{"port out of range", "PORT", "70000", ErrInvalidPort},
		{"zero worker bits", "WORKER_ID_BITS", "0", ErrInvalidWorkerIDBits},
		{"too many worker bits", "WORKER_ID_BITS", "14", ErrInvalidWorkerIDBits},
		{"bad duration", "COORDINATOR_TIMEOUT", "soon", nil},
		{"zero interval", "SNAPSHOT_INTERVAL", "0s", ErrInvalidDuration},
		{"negative retries", "COORDINATOR_MAX_RETRIES", "-1", ErrInvalidRetries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_CoordinatorEnabled(t *testing.T) {
	assert.True(t, (&Config{CoordinatorURL: "http://c:1"}).CoordinatorEnabled())
	assert.False(t, (&Config{CoordinatorURL: ""}).CoordinatorEnabled())
	assert.False(t, (&Config{CoordinatorURL: "http://c:1", CoordinatorDisabled: true}).CoordinatorEnabled())
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               18001,
		Dir:                "/tmp/ids",
		WorkerIDBits:       10,
		CoordinatorURL:     "http://coordinator:18001",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "access-key",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "18001")
	assert.Contains(t, str, "/tmp/ids")
	assert.Contains(t, str, "http://coordinator:18001")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "access-key")
	assert.NotContains(t, str, "secret-key")
}

func TestConfig_JSONMasksSecrets(t *testing.T) {
	cfg := &Config{AWSAccessKeyID: "access-key", AWSSecretAccessKey: "secret-key"}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "access-key")
	assert.NotContains(t, string(data), "secret-key")
}

func TestConfig_NewLoggerTo_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	var buf bytes.Buffer
	logger := cfg.NewLoggerTo(&buf)
	require.NotNil(t, logger)

	logger.Info("test message")
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConfig_NewLoggerTo_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	var buf bytes.Buffer
	logger := cfg.NewLoggerTo(&buf)
	logger.Debug("visible")

	assert.Contains(t, buf.String(), "msg=visible")
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := &Config{LogFormat: "text", LogLevel: "info"}
	require.NotNil(t, cfg.NewLogger())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:               18001,
			WorkerIDBits:       10,
			CoordinatorTimeout: time.Second,
			SnapshotInterval:   time.Second,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("zero port", func(t *testing.T) {
		cfg := valid()
		cfg.Port = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)
	})

	t.Run("zero timeout", func(t *testing.T) {
		cfg := valid()
		cfg.CoordinatorTimeout = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidDuration)
	})
}
