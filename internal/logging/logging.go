// logging.go - Structured logging for the zklay client.
//
// Logs go to stderr and, when configured, to an append-only file. Audit
// events (auditor decryptions) additionally go to a dedicated audit file so
// they can be retained separately from operational logs.

package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditLoggerName tags entries written through Audit.
const AuditLoggerName = "audit"

// Logger bundles the operational and audit loggers.
type Logger struct {
	*zap.Logger
	audit   *zap.Logger
	closers []*os.File
}

// ParseLevel maps a configuration level to a zap level. Unknown values
// fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger at level. logFile and auditFile may be empty.
func New(level, logFile, auditFile string) (*Logger, error) {
	lvl := ParseLevel(level)

	consoleCfg := zap.NewProductionEncoderConfig()
	consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEnc := zapcore.NewJSONEncoder(consoleCfg)
	if lvl == zapcore.DebugLevel {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(devCfg)
	}

	l := &Logger{}
	cores := []zapcore.Core{zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), lvl)}

	if logFile != "" {
		f, err := openAppend(logFile)
		if err != nil {
			return nil, errors.Wrap(err, "open log file")
		}
		l.closers = append(l.closers, f)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(consoleCfg), zapcore.AddSync(f), lvl))
	}
	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	l.audit = l.Logger.Named(AuditLoggerName)
	if auditFile != "" {
		f, err := openAppend(auditFile)
		if err != nil {
			l.Close()
			return nil, errors.Wrap(err, "open audit file")
		}
		l.closers = append(l.closers, f)
		auditCore := zapcore.NewCore(zapcore.NewJSONEncoder(consoleCfg), zapcore.AddSync(f), zapcore.InfoLevel)
		l.audit = zap.New(zapcore.NewTee(l.Logger.Core(), auditCore)).Named(AuditLoggerName)
	}
	return l, nil
}

// Wrap adapts an existing zap logger, for tests. nil yields a no-op logger.
func Wrap(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{Logger: z, audit: z.Named(AuditLoggerName)}
}

// Audit records an audit event.
func (l *Logger) Audit(event string, fields ...zap.Field) {
	l.audit.Info(event, fields...)
}

// Close flushes and releases any files.
func (l *Logger) Close() error {
	if l.Logger != nil {
		_ = l.Logger.Sync()
	}
	var first error
	for _, f := range l.closers {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
