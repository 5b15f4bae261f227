package log

import "fmt"

// LogCfg holds the logging configuration for the utility layer. It is
// deliberately small: this layer writes structured events to stdout (or any
// io.Writer supplied through a WriterAppender); rotation and shipping are the
// host process's concern.
type LogCfg struct {
	// LogLevel defines the minimum log level for filtering log entries.
	// Supports hot-reload without restart for dynamic adjustment.
	LogLevel Level `mapstructure:"level"`

	// ConsoleAppender enables console (stdout) logging output.
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	// EnabledCallerInfo controls whether each event captures the calling
	// file, function, and line. Capturing costs a stack walk per event.
	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`

	// CallerSkip specifies additional stack frames to skip when capturing
	// caller information. Useful for wrapper layers.
	CallerSkip int `mapstructure:"callerSkip"`
}

// Validate validates the logging configuration for correctness.
func (cfg *LogCfg) Validate() error {
	if cfg.LogLevel < TraceLevel || cfg.LogLevel > FatalLevel {
		return fmt.Errorf("invalid log level: %d, must be between %d (Trace) and %d (Fatal)",
			cfg.LogLevel, TraceLevel, FatalLevel)
	}
	if cfg.CallerSkip < 0 {
		return fmt.Errorf("caller skip must be non-negative, got %d", cfg.CallerSkip)
	}
	return nil
}

var _defaultCfg = &LogCfg{
	LogLevel:          InfoLevel,
	ConsoleAppender:   true,
	EnabledCallerInfo: true,
}

func getDefaultCfg() *LogCfg {
	return _defaultCfg
}
