// Package log provides the structured logging glue for the utility layer:
// a fluent, pooled event API over pluggable appenders with hot-reloadable
// levels. Components log through the package-level default logger unless a
// specific instance is injected.
package log

var _defaultLogger *EngineLogger

func init() {
	// Initialize with default settings. Hosts call Initialize() later with a
	// specific configuration.
	_defaultLogger = NewLogger(getDefaultCfg())
}

// Initialize configures the default logger with the given configuration.
// If cfg is nil, the default configuration is used. This function should be
// called once at process startup.
func Initialize(cfg *LogCfg) error {
	if cfg == nil {
		cfg = getDefaultCfg()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	SetDefaultLogger(NewLogger(cfg))
	return nil
}

// SetDefaultLogger replaces the default logger with a custom instance.
func SetDefaultLogger(logger *EngineLogger) {
	_defaultLogger = logger
}

// DefaultLogger returns the current package-level logger.
func DefaultLogger() *EngineLogger {
	return _defaultLogger
}

// SetLevel hot-reloads the default logger's minimum level.
func SetLevel(level Level) {
	_defaultLogger.SetLevel(level)
}

// AddAppender adds a new log appender to the default logger.
func AddAppender(appender LogAppender) {
	_defaultLogger.AddAppender(appender)
}

// Refresh triggers a refresh operation on all appenders of the default logger.
func Refresh() {
	_defaultLogger.Refresh()
}

// Close flushes and closes the default logger and its appenders.
func Close() {
	_defaultLogger.Close()
}

// Trace creates a new trace-level log event using the default logger.
func Trace() *LogEvent {
	return _defaultLogger.Trace()
}

// Debug creates a new debug-level log event using the default logger.
func Debug() *LogEvent {
	return _defaultLogger.Debug()
}

// Info creates a new info-level log event using the default logger.
func Info() *LogEvent {
	return _defaultLogger.Info()
}

// Warn creates a new warn-level log event using the default logger.
func Warn() *LogEvent {
	return _defaultLogger.Warn()
}

// Error creates a new error-level log event using the default logger.
func Error() *LogEvent {
	return _defaultLogger.Error()
}

// Fatal creates a new fatal-level log event using the default logger.
func Fatal() *LogEvent {
	return _defaultLogger.Fatal()
}
