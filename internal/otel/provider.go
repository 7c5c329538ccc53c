// Package otel wires the OpenTelemetry log SDK: a pretty-printed file
// exporter next to the regular log file and an optional OTLP/HTTP exporter.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty.
	DefaultServiceName = "hudsim"

	defaultBatchTimeout = 5 * time.Second
)

// ErrNoExporter is returned when OTel is enabled with neither a log writer
// nor an OTLP endpoint.
var ErrNoExporter = errors.New("otel enabled without a log writer or endpoint")

// Config holds OTel configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	BatchTimeout   time.Duration

	// LogWriter receives the records as pretty-printed JSON.
	LogWriter io.Writer
	// Endpoint is an OTLP/HTTP host:port; empty disables the exporter.
	Endpoint string
	Insecure bool
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	return c
}

// Provider owns the log provider for the otelslog bridge. A disabled
// Provider is valid and does nothing.
type Provider struct {
	cfg  Config
	logs *sdklog.LoggerProvider
}

// New builds the log pipeline described by cfg.
func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{cfg: cfg}, nil
	}
	cfg = cfg.withDefaults()
	ctx := context.Background()

	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName), semconv.TelemetrySDKLanguageGo}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	exporters, err := cfg.exporters(ctx)
	if err != nil {
		return nil, err
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout))))
	}
	return &Provider{cfg: cfg, logs: sdklog.NewLoggerProvider(opts...)}, nil
}

func (c Config) exporters(ctx context.Context) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter
	if c.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(c.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating file log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if c.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(c.Endpoint)}
		if c.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP log exporter for %s: %w", c.Endpoint, err)
		}
		out = append(out, exp)
	}
	if len(out) == 0 {
		return nil, ErrNoExporter
	}
	return out, nil
}

// LoggerProvider is nil when OTel is disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Meter returns a meter from the global meter provider. It is a no-op until
// one is installed with otel.SetMeterProvider.
func (p *Provider) Meter(name string) metric.Meter {
	return otel.Meter(name)
}

func (p *Provider) ServiceName() string { return p.cfg.ServiceName }

func (p *Provider) Enabled() bool { return p.cfg.Enabled }

// Flush exports any batched records.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flushing otel logs: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporters. Records emitted afterwards are
// dropped.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down otel logs: %w", err)
	}
	return nil
}
