package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prawnloader/prawnloader/loader"
)

// Logger wraps slog.Logger to satisfy loader.Logger.
type Logger struct {
	logger  *slog.Logger
	logFile *os.File
}

// Options controls handler selection and output.
type Options struct {
	Level     string
	Format    string
	AddSource bool
	// Dir receives one log file per day. Empty disables file output.
	Dir string
	// Stdout overrides the console writer, mostly for tests.
	Stdout io.Writer
}

// New creates a new Logger with configurable output format.
func New(opts Options) (*Logger, error) {
	console := opts.Stdout
	if console == nil {
		console = os.Stderr
	}

	var (
		output  io.Writer = console
		logFile *os.File
	)
	if strings.TrimSpace(opts.Dir) != "" {
		file, err := openDailyFile(opts.Dir)
		if err != nil {
			return nil, err
		}
		logFile = file
		output = io.MultiWriter(console, file)
	}

	options := &slog.HandlerOptions{
		Level:     parseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handler = slog.NewJSONHandler(output, options)
	} else {
		handler = slog.NewTextHandler(output, options)
	}

	return &Logger{logger: slog.New(handler), logFile: logFile}, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a child logger with additional fields.
func (l *Logger) With(args ...any) loader.Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// Close closes the log file handle.
func (l *Logger) Close() error {
	if l == nil || l.logFile == nil {
		return nil
	}
	return l.logFile.Close()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openDailyFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := time.Now().Local().Format("2006-01-02") + ".log"
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
