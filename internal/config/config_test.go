package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unset clears key for the duration of the test and restores it afterwards.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

var allKeys = []string{
	"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "RUN_ONCE", "SENTRY_DSN", "HTTP_TIMEOUT",
	"OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL", "WEATHER_CITY",
	"READINESS_TIMEOUT", "READINESS_POKE_INTERVAL",
	"SCHEDULE", "RUN_TIMEOUT", "RETRIES", "RETRY_DELAY",
	"STORAGE_DRIVER", "S3_BUCKET", "S3_PREFIX", "AWS_REGION", "AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN", "S3_ENDPOINT", "S3_USE_PATH_STYLE", "FILE_SINK_DIR",
	"STORE_DRIVER", "STORE_SQLITE_PATH", "STORE_MAX_HISTORY", "STORE_MAX_AGE",
	"CONFIG_FILE",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	unset(t, allKeys...)
	// keep godotenv from picking up a developer's .env
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)
	t.Setenv("OPENWEATHER_API_KEY", "secret")
	t.Setenv("S3_BUCKET", "weather-bucket")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "weather-etl", cfg.AppName)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.RunOnce)
	assert.Equal(t, "secret", cfg.OpenWeather.APIKey)
	assert.Equal(t, "Portland", cfg.OpenWeather.City)
	assert.Equal(t, "https://api.openweathermap.org", cfg.OpenWeather.BaseURL)
	assert.Equal(t, "@daily", cfg.Schedule.Cron)
	assert.Equal(t, 2, cfg.Schedule.Retries)
	assert.Equal(t, 2*time.Minute, cfg.Schedule.RetryDelay)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "weather-bucket", cfg.Storage.Bucket)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("OPENWEATHER_API_KEY", "secret")
	t.Setenv("WEATHER_CITY", "Seattle")
	t.Setenv("SCHEDULE", "0 6 * * *")
	t.Setenv("RETRIES", "5")
	t.Setenv("STORAGE_DRIVER", "file")
	t.Setenv("FILE_SINK_DIR", "/tmp/weather")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("RUN_ONCE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Seattle", cfg.OpenWeather.City)
	assert.Equal(t, "0 6 * * *", cfg.Schedule.Cron)
	assert.Equal(t, 5, cfg.Schedule.Retries)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/weather", cfg.Storage.FileDir)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.True(t, cfg.RunOnce)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	cleanEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"OPENWEATHER_API_KEY: from-yaml\n"+
			"WEATHER_CITY: Boston\n"+
			"RETRY_DELAY: 30s\n"+
			"S3_BUCKET: yaml-bucket\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("S3_BUCKET", "env-bucket")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.OpenWeather.APIKey)
	assert.Equal(t, "Boston", cfg.OpenWeather.City)
	assert.Equal(t, 30*time.Second, cfg.Schedule.RetryDelay)
	assert.Equal(t, "env-bucket", cfg.Storage.Bucket, "environment wins over the file")
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing api key":   {"S3_BUCKET": "b"},
		"missing bucket":    {"OPENWEATHER_API_KEY": "k"},
		"bad schedule":      {"OPENWEATHER_API_KEY": "k", "S3_BUCKET": "b", "SCHEDULE": "whenever"},
		"bad storage":       {"OPENWEATHER_API_KEY": "k", "STORAGE_DRIVER": "ftp"},
		"bad store":         {"OPENWEATHER_API_KEY": "k", "S3_BUCKET": "b", "STORE_DRIVER": "redis"},
		"half credentials":  {"OPENWEATHER_API_KEY": "k", "S3_BUCKET": "b", "AWS_ACCESS_KEY_ID": "id"},
		"negative retries":  {"OPENWEATHER_API_KEY": "k", "S3_BUCKET": "b", "RETRIES": "-1"},
		"unparsable number": {"OPENWEATHER_API_KEY": "k", "S3_BUCKET": "b", "RETRIES": "two"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
