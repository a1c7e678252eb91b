// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/config"
)

// Setup applies cfg to the global logger. Unknown levels fall back to info.
func Setup(cfg config.LogConfig) {
	Configure(os.Stderr, cfg)
}

// Configure is Setup with an explicit writer.
func Configure(w io.Writer, cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", "aituber").Logger()

	if err != nil && cfg.Level != "" {
		log.Warn().Str("level", cfg.Level).Msg("unknown LOG_LEVEL, using info")
	}
}
