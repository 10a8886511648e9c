package logger

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger holds multiple logging backends and dispatches log calls to all of them.
// A nil *Logger discards everything, so components can be built without one.
type Logger struct {
	instances []LoggerInstance
	keyvals   []any
}

var singleton *Logger

// New creates a logger that dispatches to the given backends.
func New(instances ...LoggerInstance) *Logger {
	return &Logger{instances: instances}
}

// With returns a child logger that prepends keyvals to every entry.
func (l *Logger) With(keyvals ...any) *Logger {
	if l == nil {
		return nil
	}
	merged := make([]any, 0, len(l.keyvals)+len(keyvals))
	merged = append(merged, l.keyvals...)
	merged = append(merged, keyvals...)
	return &Logger{instances: l.instances, keyvals: merged}
}

func (l *Logger) fields(keyvals []any) []any {
	if len(l.keyvals) == 0 {
		return keyvals
	}
	out := make([]any, 0, len(l.keyvals)+len(keyvals))
	out = append(out, l.keyvals...)
	return append(out, keyvals...)
}

// Log writes a message at the default log level to all configured backends.
func (l *Logger) Log(message string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		instance.Log(message, l.fields(keyvals)...)
	}
}

// Debug writes a message at DEBUG level to all configured backends.
func (l *Logger) Debug(message string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		instance.Debug(message, l.fields(keyvals)...)
	}
}

// Info writes a message at INFO level to all configured backends.
func (l *Logger) Info(message string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		instance.Info(message, l.fields(keyvals)...)
	}
}

// Warn writes a message at WARN level to all configured backends.
func (l *Logger) Warn(message string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		instance.Warn(message, l.fields(keyvals)...)
	}
}

// Error writes a message at ERROR level to all configured backends.
func (l *Logger) Error(message string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		instance.Error(message, l.fields(keyvals)...)
	}
}

// Fatal writes a message at FATAL level and terminates the program.
func (l *Logger) Fatal(message string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		instance.Fatal(message, l.fields(keyvals)...)
	}
}

// Init installs the process-wide logger used by the package-level helpers.
// Only the cmd entry points should call it; everything else takes a *Logger.
func Init(instances ...LoggerInstance) *Logger {
	singleton = New(instances...)
	return singleton
}

// Default returns the logger installed by Init, or nil.
func Default() *Logger {
	return singleton
}

// Info writes a message at INFO level using the process-wide logger.
func Info(message string, keyvals ...any) {
	singleton.Info(message, keyvals...)
}

// Warn writes a message at WARN level using the process-wide logger.
func Warn(message string, keyvals ...any) {
	singleton.Warn(message, keyvals...)
}

// Error writes a message at ERROR level using the process-wide logger.
func Error(message string, keyvals ...any) {
	singleton.Error(message, keyvals...)
}

// Debug writes a message at DEBUG level using the process-wide logger.
func Debug(message string, keyvals ...any) {
	singleton.Debug(message, keyvals...)
}

// Fatal writes a message at FATAL level using the process-wide logger.
func Fatal(message string, keyvals ...any) {
	singleton.Fatal(message, keyvals...)
}
