package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger from the config: console output for
// humans, JSON for log shippers.
func NewLogger(cfg *Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("pipeline: invalid log level %q: %w", cfg.Log.Level, err)
	}

	var output io.Writer = os.Stderr
	if cfg.Log.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "pypsa-entsoe").
		Logger()
	return logger, nil
}
