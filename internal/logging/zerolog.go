package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog returns a zerolog logger at level writing JSON to w, for
// components that log through zerolog.
func NewZerolog(w io.Writer, level string, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// DispatcherLogger lets the command dispatcher log key-value pairs through
// zerolog.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

func (l *DispatcherLogger) Debug(msg string, kv ...any) { withPairs(l.logger.Debug(), kv).Msg(msg) }
func (l *DispatcherLogger) Info(msg string, kv ...any)  { withPairs(l.logger.Info(), kv).Msg(msg) }
func (l *DispatcherLogger) Warn(msg string, kv ...any)  { withPairs(l.logger.Warn(), kv).Msg(msg) }
func (l *DispatcherLogger) Error(msg string, kv ...any) { withPairs(l.logger.Error(), kv).Msg(msg) }

// withPairs adds alternating keys and values to e in order. Pairs with a
// non-string key and a trailing key without a value are skipped.
func withPairs(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case time.Duration:
			e = e.Dur(key, v)
		case string:
			e = e.Str(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}
