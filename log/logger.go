package log

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the interface for a logging component, providing methods
// for structured logging at various levels.
type Logger interface {
	Trace() *LogEvent
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	AddAppender(appender LogAppender)
	GetAppender() []LogAppender
	OnEventEnd(e *LogEvent)
}

// EngineLogger is a thread-safe logger with configurable appenders and a
// lock-free logging path. Events are pooled to minimize garbage collection
// pressure; the minimum level is stored atomically so it can be hot-reloaded
// while admission paths are logging.
type EngineLogger struct {
	appenders         []LogAppender
	minLevel          atomic.Int32
	callerSkip        int
	enabledCallerInfo bool
	eventPool         *sync.Pool
	callerCache       sync.Map // pc -> formatted caller string
}

// NewLogger creates a new EngineLogger from cfg. If cfg is nil, defaults
// are used. Appenders follow the configuration; additional appenders can be
// attached afterwards with AddAppender.
func NewLogger(cfg *LogCfg) *EngineLogger {
	if cfg == nil {
		cfg = getDefaultCfg()
	}

	logger := &EngineLogger{
		callerSkip:        cfg.CallerSkip,
		enabledCallerInfo: cfg.EnabledCallerInfo,
	}
	logger.minLevel.Store(int32(cfg.LogLevel))
	logger.eventPool = &sync.Pool{
		New: func() any {
			return newEvent(logger)
		},
	}

	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}
	return logger
}

// SetLevel updates the minimum level. Safe to call concurrently with
// logging; in-flight events that already passed the check complete under
// the old level.
func (x *EngineLogger) SetLevel(level Level) {
	x.minLevel.Store(int32(level))
}

// checkLevel reports whether the given level should be logged.
func (x *EngineLogger) checkLevel(level Level) bool {
	return Level(x.minLevel.Load()) <= level
}

// AddAppender adds a new log appender. Appenders must be registered before
// the logger is shared between goroutines; registration is not synchronized
// with the logging path.
func (x *EngineLogger) AddAppender(appender LogAppender) {
	x.appenders = append(x.appenders, appender)
}

// GetAppender returns the appenders currently registered with the logger.
func (x *EngineLogger) GetAppender() []LogAppender {
	return x.appenders
}

// Refresh triggers a refresh operation on all registered appenders.
func (x *EngineLogger) Refresh() {
	for _, appender := range x.appenders {
		_ = appender.Refresh()
	}
}

// Close closes all registered appenders, flushing any buffered logs.
func (x *EngineLogger) Close() {
	for _, appender := range x.appenders {
		_ = appender.Close()
	}
}

// OnEventEnd writes the completed event to every appender and returns it to
// the pool. Fatal events panic after emission; the limiter itself never logs
// at Fatal, that level exists for the host process.
func (x *EngineLogger) OnEventEnd(e *LogEvent) {
	for _, appender := range x.appenders {
		_, _ = appender.Write(e.buf.Bytes())
	}

	if e.level == FatalLevel {
		panic("fatal log event")
	}
	x.eventPool.Put(e)
}

// Trace creates a new trace-level log event, or nil when filtered.
func (x *EngineLogger) Trace() *LogEvent {
	return x.log(TraceLevel)
}

// Debug creates a new debug-level log event, or nil when filtered.
func (x *EngineLogger) Debug() *LogEvent {
	return x.log(DebugLevel)
}

// Info creates a new info-level log event, or nil when filtered.
func (x *EngineLogger) Info() *LogEvent {
	return x.log(InfoLevel)
}

// Warn creates a new warn-level log event, or nil when filtered.
func (x *EngineLogger) Warn() *LogEvent {
	return x.log(WarnLevel)
}

// Error creates a new error-level log event, or nil when filtered.
func (x *EngineLogger) Error() *LogEvent {
	return x.log(ErrorLevel)
}

// Fatal creates a new fatal-level log event. Emitting it panics.
func (x *EngineLogger) Fatal() *LogEvent {
	return x.log(FatalLevel)
}

// getCaller resolves the logging call site to "pkg/file.go:line". Resolved
// program counters are cached; the stack walk itself cannot be avoided.
func (x *EngineLogger) getCaller() string {
	pc, file, line, ok := runtime.Caller(3 + x.callerSkip)
	if !ok {
		return "unknown"
	}
	if cached, found := x.callerCache.Load(pc); found {
		return cached.(string)
	}

	// Keep the last two path segments, matching how engine components are
	// usually laid out (package dir + file).
	if lastSlash := strings.LastIndexByte(file, '/'); lastSlash > 0 {
		if secondLastSlash := strings.LastIndexByte(file[:lastSlash], '/'); secondLastSlash >= 0 {
			file = file[secondLastSlash+1:]
		}
	}
	caller := file + ":" + strconv.Itoa(line)
	x.callerCache.Store(pc, caller)
	return caller
}

// log prepares a new event with the common fields: timestamp, level and,
// when enabled, caller info. Returns nil when the level is filtered.
func (x *EngineLogger) log(level Level) *LogEvent {
	if !x.checkLevel(level) {
		return nil
	}

	e := x.eventPool.Get().(*LogEvent)
	e.Reset()
	e.level = level

	e.Time("time", time.Now())
	e.Str("level", level.String())
	if x.enabledCallerInfo {
		e.Str("caller", x.getCaller())
	}
	return e
}
