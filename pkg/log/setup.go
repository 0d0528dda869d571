package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Sriram-PR/site-mapper/pkg/config"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the application logger writing to console and, when cfg.File is set, to a rotated log file
// The returned Closer flushes and closes the log file; call it on shutdown.
func NewLogger(cfg config.LogConfig, console io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel) // Default level

	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", cfg.Level, err)
		} else {
			log.SetLevel(level)
		}
	}

	if console == nil {
		console = os.Stderr
	}
	if cfg.File == "" {
		log.SetOutput(console)
		return log, nopCloser{}, nil
	}

	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("%w: creating log directory '%s': %w", utils.ErrFilesystem, dir, err)
		}
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000", DisableColors: true})
	log.SetOutput(io.MultiWriter(console, rotated))
	return log, rotated, nil
}
