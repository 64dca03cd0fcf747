package logging

import (
	"context"
)

// Logger is the structured logger handed to every motionkit component. Messages come in a plain
// form (fmt.Sprint), an f form (fmt.Sprintf) and a w form taking alternating keys and values. The
// CDebug variants also log when the context has debug mode enabled.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	CDebug(ctx context.Context, args ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger named "<name>.<subname>" sharing this logger's appenders. Its
	// level starts at this logger's level and is set independently afterwards.
	Sublogger(subname string) Logger
	// With returns a logger that adds keysAndValues to every entry, ahead of the entry's own
	// fields. It shares the level and appenders of this logger.
	With(keysAndValues ...interface{}) Logger

	SetLevel(level Level)
	GetLevel() Level
	AddAppender(appender Appender)
	// Sync flushes every appender.
	Sync() error
}
