package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog"

	"github.com/getsentry/callprof/internal/errorutil"
)

type ServiceConfig struct {
	Environment string `env:"SENTRY_ENVIRONMENT" env-default:"development"`
	SentryDSN   string `env:"SENTRY_DSN"`

	LogLevel string `env:"CALLPROF_LOG_LEVEL" env-default:"info" validate:"oneof=trace debug info warn error"`

	Iterations int   `env:"CALLPROF_ITERATIONS" env-default:"10" validate:"min=1"`
	Images     int   `env:"CALLPROF_IMAGES" env-default:"4" validate:"min=1"`
	ImageSize  int   `env:"CALLPROF_IMAGE_SIZE" env-default:"32" validate:"min=2"`
	ModelDepth int   `env:"CALLPROF_MODEL_DEPTH" env-default:"4" validate:"min=1"`
	Seed       int64 `env:"CALLPROF_SEED" env-default:"1"`

	TopK int `env:"CALLPROF_TOP_K" env-default:"20" validate:"min=1"`

	// Listen is the address the report is served on once the run is over.
	// Nothing is served when it's empty.
	Listen string `env:"CALLPROF_LISTEN" validate:"omitempty,hostname_port"`
}

var validate = validator.New()

func loadConfig() (ServiceConfig, error) {
	var cfg ServiceConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", errorutil.ErrInvalidConfig, err)
	}
	return cfg, cfg.validate()
}

func (c ServiceConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errorutil.ErrInvalidConfig, err)
	}
	return nil
}

func (c ServiceConfig) level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
