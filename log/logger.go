// Package log provides structured logging with run context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the run controller (structured fields)
//   - SugaredLogger: Printf-style logging for CLI/debug surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/uproot/types"
)

// Logger provides structured logging with run context.
// Entries created from a run carry run_id and target fields.
type Logger struct {
	zap  *zap.Logger
	meta *types.RunMeta
}

// SugaredLogger provides printf-style logging for CLI and debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger with run context writing to os.Stderr.
func NewLogger(runMeta *types.RunMeta) *Logger {
	return NewLoggerWithWriter(runMeta, os.Stderr)
}

// NewLoggerWithWriter creates a logger with run context writing to w.
// A nil runMeta yields a logger without run fields.
func NewLoggerWithWriter(runMeta *types.RunMeta, w io.Writer) *Logger {
	l := zap.New(newCore(w))
	if runMeta != nil {
		l = l.With(runFields(runMeta)...)
	}
	return &Logger{zap: l, meta: runMeta}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newCore(w io.Writer) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
}

func runFields(runMeta *types.RunMeta) []zap.Field {
	return []zap.Field{
		zap.String("run_id", runMeta.RunID),
		zap.String("target", runMeta.Target),
	}
}

// ForRun returns a child logger carrying the run's identity fields.
func (l *Logger) ForRun(runMeta *types.RunMeta) *Logger {
	return &Logger{zap: l.zap.With(runFields(runMeta)...), meta: runMeta}
}

// WithOutput returns a new logger with a different output writer.
// Run context fields are carried over.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return NewLoggerWithWriter(l.meta, w)
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Log logs at a worker-declared level.
func (l *Logger) Log(level types.LogLevel, message string, fields map[string]any) {
	switch level {
	case types.LogLevelDebug:
		l.Debug(message, fields)
	case types.LogLevelWarn:
		l.Warn(message, fields)
	case types.LogLevelError:
		l.Error(message, fields)
	default:
		l.Info(message, fields)
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
