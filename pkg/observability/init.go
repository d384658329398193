package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// Config contains tracing configuration
type Config struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	ServiceName    string  `yaml:"service_name" mapstructure:"service_name"`
	ServiceVersion string  `yaml:"service_version" mapstructure:"service_version"`
	Environment    string  `yaml:"environment" mapstructure:"environment"`
	SamplingRate   float64 `yaml:"sampling_rate" mapstructure:"sampling_rate"`
	// Exporter is "stdout" or "none".
	Exporter       string        `yaml:"exporter" mapstructure:"exporter"`
	OutputPath     string        `yaml:"output_path" mapstructure:"output_path"`
	BatchTimeout   time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
	MaxExportBatch int           `yaml:"max_export_batch" mapstructure:"max_export_batch"`
	MaxQueueSize   int           `yaml:"max_queue_size" mapstructure:"max_queue_size"`
}

// DefaultConfig returns a disabled tracing configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "geovec",
		ServiceVersion: "dev",
		Environment:    getEnv("ENVIRONMENT", "development"),
		SamplingRate:   1.0,
		Exporter:       "stdout",
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}

// Validate checks the exporter and sampling rate
func (c Config) Validate() error {
	switch c.Exporter {
	case "stdout", "none", "":
	default:
		return geoerrors.Newf(geoerrors.ErrorTypeConfig, "unknown trace exporter %q", c.Exporter)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return geoerrors.Newf(geoerrors.ErrorTypeConfig, "sampling rate %v is outside [0, 1]", c.SamplingRate)
	}
	return nil
}

// Init installs a global tracer provider for config and returns its
// shutdown function. When tracing is disabled the global no-op provider is
// kept and shutdown does nothing.
func Init(config Config) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !config.Enabled || config.Exporter == "none" {
		return noop, nil
	}
	if err := config.Validate(); err != nil {
		return noop, err
	}

	var w io.Writer = os.Stdout
	var file *os.File
	if config.OutputPath != "" {
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return noop, geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot open trace output").
				WithDetail("path", config.OutputPath)
		}
		w, file = f, f
	}

	tp, err := NewTracerProvider(config, w)
	if err != nil {
		return noop, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}

// NewTracerProvider builds a provider exporting spans as JSON to w.
func NewTracerProvider(config Config, w io.Writer) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", config.ServiceName),
		attribute.String("service.version", config.ServiceVersion),
		attribute.String("deployment.environment", config.Environment),
	)

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	// Configure sampling
	var sampler sdktrace.Sampler
	if config.SamplingRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	batch := []sdktrace.BatchSpanProcessorOption{}
	if config.BatchTimeout > 0 {
		batch = append(batch, sdktrace.WithBatchTimeout(config.BatchTimeout))
	}
	if config.MaxExportBatch > 0 {
		batch = append(batch, sdktrace.WithMaxExportBatchSize(config.MaxExportBatch))
	}
	if config.MaxQueueSize > 0 {
		batch = append(batch, sdktrace.WithMaxQueueSize(config.MaxQueueSize))
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithBatcher(exporter, batch...),
	), nil
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
