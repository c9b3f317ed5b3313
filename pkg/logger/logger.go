// Package logger provides a centralized diagnostic logging configuration for hidswatch.
// Alerts are not written through this logger; see internal/notifier.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Global logger instance
	hidsLogger *zap.Logger
	mu         sync.RWMutex
)

// LogConfig holds the logging configuration
type LogConfig struct {
	Level      string
	OutputPath string // empty disables file output
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Console    bool // also log to stderr
	EnableJSON bool
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *LogConfig {
	home, _ := os.UserHomeDir()
	return &LogConfig{
		Level:      "info",
		OutputPath: filepath.Join(home, ".hidswatch", "logs", "hidswatch.log"),
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
		Console:    false,
		EnableJSON: false,
	}
}

// New builds a logger from the given configuration without installing it globally
func New(cfg *LogConfig) (*zap.Logger, error) {
	// Parse log level
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.EnableJSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var writers []zapcore.WriteSyncer

	if cfg.OutputPath != "" {
		logDir := filepath.Dir(cfg.OutputPath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}

		// Configure file output with rotation
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}))
	}

	// Diagnostics go to stderr so they never interleave with alert lines on stdout
	if cfg.Console {
		writers = append(writers, zapcore.Lock(os.Stderr))
	}

	if len(writers) == 0 {
		return zap.NewNop(), nil
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(writers...),
		zap.NewAtomicLevelAt(level),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// Initialize sets up the global logger with the given configuration
func Initialize(cfg *LogConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set installs l as the global logger
func Set(l *zap.Logger) {
	mu.Lock()
	hidsLogger = l
	mu.Unlock()

	// Replace global logger
	zap.ReplaceGlobals(l)
}

// Get returns the global logger instance
func Get() *zap.Logger {
	mu.RLock()
	l := hidsLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	// Initialize with default config if not already initialized
	if err := Initialize(DefaultConfig()); err != nil {
		Set(zap.NewNop())
	}
	mu.RLock()
	defer mu.RUnlock()
	return hidsLogger
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if hidsLogger != nil {
		return hidsLogger.Sync()
	}
	return nil
}

// WithSession creates a logger carrying the watch session's correlation ID
func WithSession(sessionID string) *zap.Logger {
	return Get().With(zap.String("session_id", sessionID))
}
