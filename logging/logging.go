// Package logging contains the structured logger shared by motionkit components.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewBlankLogger returns a logger at debug level, with times in UTC, that writes nowhere until an
// appender is added.
func NewBlankLogger(name string) Logger {
	return &impl{name: name, level: NewAtomicLevelAt(DEBUG), inUTC: true}
}

// NewTestLogger returns a debug level logger writing to tb in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also records every entry in memory.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	logger := &impl{level: NewAtomicLevelAt(DEBUG)}
	logger.AddAppender(NewTestAppender(tb))

	core, observed := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	logger.AddAppender(core)
	return logger, observed
}
