package logging

import "github.com/rs/zerolog"

// DispatcherLogger bridges zerolog into the dispatcher's key-value Logger
// interface.
type DispatcherLogger struct {
	log zerolog.Logger
}

// NewDispatcherLogger wraps a zerolog.Logger for the dispatcher.
func NewDispatcherLogger(log zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{log: log}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.write(l.log.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.write(l.log.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.write(l.log.Error(), msg, keysAndValues)
}

// write pairs up the variadic keys and values; a trailing key with no value
// is dropped.
func (l *DispatcherLogger) write(ev *zerolog.Event, msg string, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			ev = ev.Interface(key, keysAndValues[i+1])
		}
	}
	ev.Msg(msg)
}
