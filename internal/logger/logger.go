package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nvictor/jiraiya/internal/config"
)

func New(cfg config.Config) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.AppEnv == "dev" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}
	if cfg.LogDir != "" {
		_ = os.MkdirAll(cfg.LogDir, 0o755)
		file := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "jiraiya.log"),
			MaxSize:    16, // megabytes
			MaxBackups: 8,
			Compress:   true,
		}
		w = zerolog.MultiLevelWriter(w, file)
	}
	logger := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
