package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope of the OTel log bridge.
const ServiceName = "hudsim"

// osStdout is the console destination used when no file is given.
var osStdout io.Writer = os.Stdout

// SlogManager builds the process logger: a text handler for the console or
// log file, JSON handlers for extra sinks such as Graylog and the OTel
// bridge, all behind a ContextHandler.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
	session     string
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// SetSession tags every record with the run's session id. Call it before
// Setup.
func (m *SlogManager) SetSession(id string) {
	m.session = id
}

// utcTime renders record times as RFC3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup (re)builds the logger. Records go to file as text, or to stdout
// when file is nil. Each non-nil extra writer receives JSON. A nil provider
// disables the OTel bridge.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...io.Writer) {
	opts := &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: utcTime}
	m.logProvider = provider

	console := file
	if console == nil {
		console = osStdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(console, opts)}
	for _, w := range extra {
		if w != nil {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		}
	}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	m.logger = slog.New(NewContextHandler(NewMultiHandler(handlers...)))
	if m.session != "" {
		m.logger = m.logger.With("session", m.session)
	}
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces pending OTel records out.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
