package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/emberchat/ember/internal/config"
)

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup configures a slog logger writing to both stdout and a rotating log
// file, and installs it as the process default.
func Setup(cfg *config.Config) (*slog.Logger, error) {
	logDir := cfg.Logger.Directory

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := createLogFilePath(logDir, "emberd")
	rotating := createRotatingLogger(logFilePath, cfg)
	multi := io.MultiWriter(os.Stdout, rotating)

	log := slog.New(slog.NewTextHandler(multi, &slog.HandlerOptions{
		Level: parseLevel(cfg.Logger.Level),
	}))
	slog.SetDefault(log)

	log.Info("logging initialized", "file", logFilePath)
	return log, nil
}
