// Package logging configures the process-wide structured logger. It is
// built once in main and threaded through every component constructor
// by value, never looked up through a package-level global.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MITLibraries/dspace-submission-service/internal/config"
)

// New builds a zerolog.Logger configured from cfg.LogLevel. LogFilter is
// recorded only as a field of the "logging configured" entry; it does not
// filter any log output.
func New(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().
		Str("level", cfg.LogLevel).
		Str("filter", cfg.LogFilter).
		Msg("logging configured")
	return logger
}
