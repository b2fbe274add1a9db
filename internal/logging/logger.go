// Package logging provides the structured logger shared by every command
// in this module. It wraps log/slog with the same rotation and output
// selection the rest of the logistics stack uses.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger. It is replaced by InitWithConfig once the
// configuration has been loaded; until then it defaults to a plain JSON
// logger on stdout so that early startup errors are still structured.
var Log = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Config controls the logger's level, format, and output destination.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

var levelByName = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// writerFactories dispatches Config.Output to the io.Writer it produces.
// "file" is handled separately by fileWriter since it can fall back to
// stdout on a directory-creation error.
var writerFactories = map[string]func() io.Writer{
	"stderr": func() io.Writer { return os.Stderr },
	"stdout": func() io.Writer { return os.Stdout },
}

// fileWriter opens a lumberjack-rotated log file, falling back to stdout if
// its directory can't be created.
func fileWriter(cfg Config) io.Writer {
	path := cfg.FilePath
	if path == "" {
		path = "logs/irpsolver.log"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

func resolveWriter(cfg Config) io.Writer {
	if cfg.Output == "file" {
		return fileWriter(cfg)
	}
	if factory, ok := writerFactories[cfg.Output]; ok {
		return factory()
	}
	return os.Stdout
}

// Init configures the global logger with JSON output on stdout at the given level.
func Init(level string) {
	InitWithConfig(Config{Level: level, Format: "json", Output: "stdout"})
}

// InitWithConfig configures the global logger from a full Config.
func InitWithConfig(cfg Config) {
	lvl, ok := levelByName[cfg.Level]
	if !ok {
		lvl = slog.LevelInfo
	}

	writer := resolveWriter(cfg)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	Log = slog.New(handler)
}

// WithRunID returns a logger annotated with the current run's correlation id.
func WithRunID(runID string) *slog.Logger {
	return Log.With("run_id", runID)
}

// WithPhase returns a logger annotated with the SearchController state
// machine phase (spec.md §4.8: INIT, INITIAL_MIP, WINDOW_MIP_3,
// WINDOW_MIP_2, TABU_SEARCH, FINAL_SEARCH_LOOP, EXTRACT_BEST) and the
// zero-based id of the worker running it, so a multi-worker run's log
// stream can be filtered down to a single worker's progress through the
// state machine.
func WithPhase(workerID int, phase string) *slog.Logger {
	return Log.With("worker", workerID, "phase", phase)
}

func Debug(msg string, args ...any) { Log.Debug(msg, args...) }
func Info(msg string, args ...any)  { Log.Info(msg, args...) }
func Warn(msg string, args ...any)  { Log.Warn(msg, args...) }
func Error(msg string, args ...any) { Log.Error(msg, args...) }

// Fatal logs at error level and terminates the process with exit code 1.
func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}
