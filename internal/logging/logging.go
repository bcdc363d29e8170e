// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Setup configures zerolog for the process: console-formatted output
// at debug level in development, JSON at info level otherwise.
func Setup(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	var writer = os.Stdout

	if environment == "development" {
		level = zerolog.DebugLevel
		return zerolog.New(zerolog.ConsoleWriter{Out: writer}).With().Timestamp().Logger().Level(level)
	}
	return zerolog.New(writer).With().Timestamp().Logger().Level(level)
}
