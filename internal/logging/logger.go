package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"weather-bridge/internal/config"
)

type closer func()

// NewLogger builds the process logger. Output always goes to stdout; when
// cfg.File is set it is also written to a size-rotated file. The logger is
// installed as the zerolog global so transport packages can log through
// zerolog/log.
func NewLogger(cfg config.LoggingConfig, service string) (zerolog.Logger, closer, error) {
	return newLogger(cfg, service, os.Stdout)
}

func newLogger(cfg config.LoggingConfig, service string, stdout io.Writer) (zerolog.Logger, closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var console io.Writer = stdout
	if strings.EqualFold(cfg.Format, "console") {
		console = zerolog.ConsoleWriter{Out: stdout, TimeFormat: "15:04:05.000"}
	}

	writers := []io.Writer{console}
	closeFn := func() {}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), closeFn, err
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		writers = append(writers, lj)
		closeFn = func() { _ = lj.Close() }
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	base := zerolog.New(io.MultiWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Caller().
		Logger()
	log.Logger = base
	return base, closeFn, nil
}
