package logging

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans entries out to its appenders. Subloggers share the appender slice and copy the level.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

// callerDepth is the number of frames between runtime.Caller in callerOf and the code that called
// a Logger method: callerOf, emit, the level helper, then the Logger method itself.
const callerDepth = 4

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
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// emit builds one entry at `level` and hands it to every appender. Appender failures go to
// stderr since there is nowhere else to report them.
func (imp *impl) emit(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		LoggerName: imp.name,
		Time:       time.Now(),
		Level:      level.asZap(),
		Message:    msg,
		Caller:     callerOf(callerDepth),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) print(level Level, args ...interface{}) {
	if level >= imp.level.Get() {
		imp.emit(level, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) printf(level Level, template string, args ...interface{}) {
	if level >= imp.level.Get() {
		imp.emit(level, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) printw(level Level, msg string, keysAndValues ...interface{}) {
	if level >= imp.level.Get() {
		imp.emit(level, msg, fieldsOf(keysAndValues))
	}
}

// fieldsOf pairs up alternating keys and values. A trailing key without a value is kept with a
// placeholder value so the mistake shows up in the output.
func fieldsOf(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.String(key, "unpaired log key"))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	imp.print(DEBUG, args...)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.printf(DEBUG, template, args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.printw(DEBUG, msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) {
	imp.print(INFO, args...)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.printf(INFO, template, args...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.printw(INFO, msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.print(WARN, args...)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.printf(WARN, template, args...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.printw(WARN, msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) {
	imp.print(ERROR, args...)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.printf(ERROR, template, args...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.printw(ERROR, msg, keysAndValues...)
}

// Fatal variants log at ERROR regardless of the level, then exit with status 1.
func (imp *impl) Fatal(args ...interface{}) {
	imp.fatal(fmt.Sprint(args...), nil)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.fatal(fmt.Sprintf(template, args...), nil)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.fatal(msg, fieldsOf(keysAndValues))
}

func (imp *impl) fatal(msg string, fields []zapcore.Field) {
	imp.emit(ERROR, msg, fields)
	os.Exit(1)
}

func callerOf(skip int) zapcore.EntryCaller {
	var caller zapcore.EntryCaller
	caller.PC, caller.File, caller.Line, caller.Defined = runtime.Caller(skip)
	if !caller.Defined {
		return caller
	}
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
