package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "synthpool"

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
}

// NewLogger builds the structured logger for one component of the pool
// (cycle, pool, engine, http, migrate). Every line carries the service
// and component fields so a single aggregated stream stays filterable.
//
// SYNTH_LOG_LEVEL takes zerolog level names (default info).
// SYNTH_LOG_PRETTY=1 switches to console output for local runs.
func NewLogger(component string) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("SYNTH_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if os.Getenv("SYNTH_LOG_PRETTY") == "1" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("component", component).
		Logger()
}
