package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/justyntemme/shelf/internal/config"
	"github.com/justyntemme/shelf/internal/debug"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogging points the standard logger and the debug logger at stderr
// plus, when cfg.File is set, a size-rotated log file. The returned closer
// releases the file.
func SetupLogging(cfg config.LogConfig) (io.Closer, error) {
	if cfg.File == "" {
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.Backups,
	}

	w := io.MultiWriter(os.Stderr, file)
	log.SetOutput(w)
	debug.SetOutput(w)

	log.Printf("Logging to %s (max %d MB, %d backups)", cfg.File, cfg.MaxSizeMB, cfg.Backups)
	return file, nil
}
