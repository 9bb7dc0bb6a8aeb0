package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"groupbuy-service/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

var logger *Logger

// Init sets up the global logger from configuration.
func Init(cfg config.LoggerConfig) error {
	var (
		handler slog.Handler
		level   slog.Level
		writer  io.Writer
	)

	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	switch cfg.Output {
	case "file":
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return err
		}
		writer = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
	default:
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Level == "debug",
	}

	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	logger = &Logger{Logger: slog.New(handler)}
	return nil
}

// Get returns the global logger, falling back to slog's default before Init.
func Get() *Logger {
	if logger == nil {
		return &Logger{Logger: slog.Default()}
	}
	return logger
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	Get().InfoContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Get().ErrorContext(ctx, msg, args...)
}

// With returns a logger carrying extra fields.
func With(args ...any) *Logger {
	return &Logger{Logger: Get().With(args...)}
}
