package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	AppName   string `envconfig:"APP_NAME" default:"weather-etl" validate:"required"`
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	RunOnce   bool   `envconfig:"RUN_ONCE" default:"false"`
	SentryDSN string `envconfig:"SENTRY_DSN"`

	// HTTPTimeout bounds each outbound provider request.
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`

	OpenWeather OpenWeatherConfig
	Readiness   ReadinessConfig
	Schedule    ScheduleConfig
	Storage     StorageConfig
	Store       StoreConfig
}

type OpenWeatherConfig struct {
	APIKey  string `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL string `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org" validate:"url"`
	City    string `envconfig:"WEATHER_CITY" default:"Portland" validate:"required"`
}

type ReadinessConfig struct {
	Timeout      time.Duration `envconfig:"READINESS_TIMEOUT" default:"1m" validate:"gt=0"`
	PokeInterval time.Duration `envconfig:"READINESS_POKE_INTERVAL" default:"5s" validate:"gt=0"`
}

type ScheduleConfig struct {
	Cron       string        `envconfig:"SCHEDULE" default:"@daily" validate:"required"`
	RunTimeout time.Duration `envconfig:"RUN_TIMEOUT" default:"5m" validate:"gte=0"`
	Retries    int           `envconfig:"RETRIES" default:"2" validate:"gte=0"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"2m" validate:"gte=0"`
}

// StorageConfig selects and configures the sink the CSV object is written to.
// Static AWS keys are optional; without them the default credential chain applies.
type StorageConfig struct {
	Driver          string `envconfig:"STORAGE_DRIVER" default:"s3" validate:"oneof=s3 file"`
	Bucket          string `envconfig:"S3_BUCKET" validate:"required_if=Driver s3"`
	Prefix          string `envconfig:"S3_PREFIX"`
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" validate:"required_with=AccessKeyID"`
	SessionToken    string `envconfig:"AWS_SESSION_TOKEN"`
	Endpoint        string `envconfig:"S3_ENDPOINT" validate:"omitempty,url"`
	UsePathStyle    bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	FileDir         string `envconfig:"FILE_SINK_DIR" default:"./data" validate:"required_if=Driver file"`
}

type StoreConfig struct {
	Driver     string        `envconfig:"STORE_DRIVER" default:"memory" validate:"oneof=memory sqlite"`
	SQLitePath string        `envconfig:"STORE_SQLITE_PATH" default:"weather-etl.db" validate:"required_if=Driver sqlite"`
	MaxHistory int           `envconfig:"STORE_MAX_HISTORY" default:"365" validate:"gte=0"` // a year of daily runs
	MaxAge     time.Duration `envconfig:"STORE_MAX_AGE" default:"0" validate:"gte=0"`
}

var validate = validator.New()

// Load reads configuration with this precedence: process environment, .env file,
// the YAML file named by CONFIG_FILE, then struct defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyYAML(path); err != nil {
			return nil, err
		}
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and that the schedule parses as a cron expression.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return errors.Wrapf(err, "invalid SCHEDULE %q", c.Schedule.Cron)
	}
	return nil
}

// applyYAML exports flat KEY: value pairs from the file into the environment
// without overriding variables that are already set.
func applyYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}

	for key, value := range values {
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if value == nil {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(value)); err != nil {
			return errors.Wrapf(err, "export %s", key)
		}
	}
	return nil
}
