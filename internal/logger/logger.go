package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const timeFormat = "02-01-2006 15:04:05"

// New constructs the gateway's zerolog logger. Development environments get
// human readable console output; everything else emits JSON for ingestion.
func New(env, level string, writers ...io.Writer) (*zerolog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = timeFormat
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer
	switch {
	case len(writers) > 0:
		output = io.MultiWriter(writers...)
	case strings.EqualFold(env, "development") || strings.EqualFold(env, "dev"):
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
		cw.FieldsExclude = []string{zerolog.TimestampFieldName}
		output = cw
	default:
		output = os.Stdout
	}

	log := zerolog.New(output).With().Timestamp().Logger().Level(lvl)
	return &log, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(level))
}
