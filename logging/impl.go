package logging

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip is the runtime.Caller skip from entry to the code calling a public log method: the
// log method is frame 1 and its caller frame 2.
const callerSkip = 2

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool
	// fields are added to every entry, see With.
	fields []zapcore.Field

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		fields:    imp.fields,
		appenders: imp.appenders,
	}
}

func (imp *impl) With(keysAndValues ...interface{}) Logger {
	fields := make([]zapcore.Field, 0, len(imp.fields)+len(keysAndValues)/2)
	fields = append(fields, imp.fields...)
	return &impl{
		name:      imp.name,
		level:     imp.level,
		inUTC:     imp.inUTC,
		fields:    append(fields, toFields(keysAndValues)...),
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var errs error
	for _, appender := range imp.appenders {
		errs = multierr.Combine(errs, appender.Sync())
	}
	return errs
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// entry must be called directly from a public log method so the caller is reported correctly.
func (imp *impl) entry(level Level, msg string) zapcore.Entry {
	e := zapcore.Entry{
		LoggerName: imp.name,
		Time:       time.Now(),
		Level:      level.AsZap(),
		Message:    msg,
	}
	if imp.inUTC {
		e.Time = e.Time.UTC()
	}
	var ok bool
	e.Caller.PC, e.Caller.File, e.Caller.Line, ok = runtime.Caller(callerSkip)
	if ok {
		e.Caller.Defined = true
		if fn := runtime.FuncForPC(e.Caller.PC); fn != nil {
			e.Caller.Function = fn.Name()
		}
	}
	return e
}

func (imp *impl) write(e zapcore.Entry, fields []zapcore.Field) {
	if len(imp.fields) > 0 {
		fields = append(append(make([]zapcore.Field, 0, len(imp.fields)+len(fields)), imp.fields...), fields...)
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(e, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs up keys and values. A trailing key without a value is kept with an error value
// rather than dropped.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		var key string
		if s, ok := keysAndValues[i].(fmt.Stringer); ok {
			key = s.String()
		} else {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
		}
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.entry(DEBUG, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.entry(DEBUG, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.entry(DEBUG, msg), toFields(keysAndValues))
	}
}

func (imp *impl) CDebug(ctx context.Context, args ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.entry(DEBUG, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.entry(DEBUG, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) || IsDebugMode(ctx) {
		imp.write(imp.entry(DEBUG, msg), toFields(keysAndValues))
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.entry(INFO, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.entry(INFO, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.entry(INFO, msg), toFields(keysAndValues))
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.entry(WARN, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.entry(WARN, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.entry(WARN, msg), toFields(keysAndValues))
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.entry(ERROR, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.entry(ERROR, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.entry(ERROR, msg), toFields(keysAndValues))
	}
}
