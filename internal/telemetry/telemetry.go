// Package telemetry wires OpenTelemetry metrics and traces to rotated
// files on disk. When Init is never called the global providers are
// no-ops, so instrumented packages work unchanged in tests.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hammamikhairi/burnchat/internal/logger"
)

// ScopeName is the instrumentation scope shared by every package.
const ScopeName = "github.com/hammamikhairi/burnchat"

// Init installs global meter and tracer providers that export to
// dir/metrics.log and dir/traces.log. The returned func flushes and
// closes everything.
func Init(ctx context.Context, dir string, log *logger.Logger) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry dir: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("burnchat"),
			semconv.ServiceVersion("0.1.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	traceFile := rotated(filepath.Join(dir, "traces.log"))
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile := rotated(filepath.Join(dir, "metrics.log"))
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	log.Info("telemetry enabled (dir=%s)", dir)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error("telemetry: tracer shutdown: %v", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			log.Error("telemetry: meter shutdown: %v", err)
		}
		traceFile.Close()
		metricsFile.Close()
	}
	return shutdown, nil
}

// RotatedFile returns a size-rotated writer for path.
func RotatedFile(path string) *lumberjack.Logger {
	return rotated(path)
}

func rotated(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// Counter returns a named counter from the global meter provider, or a
// no-op counter if the provider rejects the definition.
func Counter(name, desc string) metric.Int64Counter {
	c, err := otel.Meter(ScopeName).Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// Histogram returns a named float histogram, falling back to a no-op.
func Histogram(name, desc, unit string) metric.Float64Histogram {
	h, err := otel.Meter(ScopeName).Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
	if err != nil {
		return noop.Float64Histogram{}
	}
	return h
}

// Tracer returns the shared tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}
