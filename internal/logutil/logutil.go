package logutil

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cloud.google.com/go/compute/metadata"
)

// ConfigureLogger sets up the global logger: JSON with a severity field on
// GCE, human readable on stderr everywhere else. Events below level are
// dropped.
func ConfigureLogger(level zerolog.Level) {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if metadata.OnGCE() {
		out = os.Stderr
	}
	log.Logger = newLogger(out, level, metadata.OnGCE())
}

func newLogger(out io.Writer, level zerolog.Level, structured bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(out).With().Timestamp().Caller().Stack().Logger()
	if structured {
		logger = logger.Hook(ErrorHook{})
	}
	return logger.Sample(LevelSampler{Level: level})
}

type ErrorHook struct{}

func (h ErrorHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	e.Str("severity", level.String())
}
