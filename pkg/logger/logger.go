package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	Log = newLogger(consoleWriter(os.Stdout), zerolog.InfoLevel)
	log.Logger = Log
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
	}
}

func newLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetLevel sets the log level
func SetLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	Log = Log.Level(level)
	log.Logger = Log
}

// UseConsole sends human-readable output to out, keeping the current level.
// The CLI points it at stderr so stdout carries only command output.
func UseConsole(out io.Writer) {
	Log = newLogger(consoleWriter(out), Log.GetLevel())
	log.Logger = Log
}

// UseJSON switches the global logger to line-delimited JSON on out,
// keeping the current level. The HTTP server uses it outside debug mode.
func UseJSON(out io.Writer) {
	Log = newLogger(out, Log.GetLevel())
	log.Logger = Log
}

// Component returns a child logger tagged with the pipeline component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
