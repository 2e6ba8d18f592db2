// Package logger provides the process-wide leveled logger.
//
// Components log with a short component tag plus structured fields, e.g.
//
//	logger.InfoCF("relay", "message delivered", map[string]any{"peer": id})
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}).Level(zerolog.InfoLevel).With().Timestamp().Logger()

// SetDebug enables or disables debug-level output.
func SetDebug(enabled bool) {
	if enabled {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}
}

func emit(ev *zerolog.Event, component, msg string, fields map[string]any) {
	ev.Str("component", component)
	for k, v := range fields {
		ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// DebugCF logs a debug message with a component tag and structured fields.
func DebugCF(component, msg string, fields map[string]any) {
	emit(log.Debug(), component, msg, fields)
}

// InfoCF logs an info message with a component tag and structured fields.
func InfoCF(component, msg string, fields map[string]any) {
	emit(log.Info(), component, msg, fields)
}

// WarnCF logs a warning with a component tag and structured fields.
func WarnCF(component, msg string, fields map[string]any) {
	emit(log.Warn(), component, msg, fields)
}

// ErrorCF logs an error with a component tag and structured fields.
func ErrorCF(component, msg string, fields map[string]any) {
	emit(log.Error(), component, msg, fields)
}

// Info logs a plain info message.
func Info(msg string) { log.Info().Msg(msg) }

// Error logs a plain error message.
func Error(msg string) { log.Error().Msg(msg) }
