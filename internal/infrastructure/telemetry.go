package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"

	"marginreco/internal/config"
)

const (
	ServiceName    = "marginreco"
	ServiceVersion = "1.0.0"
	MeterName      = "marginreco"
)

// Telemetry holds the OpenTelemetry providers and the Prometheus registry behind them
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *prometheus.Registry
	Metrics        *RunMetrics
	logger         *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics and registers them globally.
// Spans go to traceOut when the stdout exporter is selected; nil means stderr.
func InitializeTelemetry(cfg config.TelemetryConfig, traceOut io.Writer, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		attribute.String("service.instance.id", GenerateTraceID()),
	)

	t := &Telemetry{logger: logger}

	switch cfg.TraceExporter {
	case "stdout":
		if traceOut == nil {
			traceOut = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(t.TracerProvider)
	case "", "none":
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	t.Registry = prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(t.Registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	t.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(t.MeterProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Metrics, err = NewRunMetrics(t.MeterProvider.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion)))
	if err != nil {
		return nil, err
	}

	logger.Info("telemetry initialized",
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("tracing_enabled", t.TracerProvider != nil))
	return t, nil
}

// MetricsHandler serves the registry in Prometheus exposition format
func (t *Telemetry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{})
}

// WriteMetricsFile writes the current metrics to path in Prometheus text format
func (t *Telemetry) WriteMetricsFile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	return nil
}

// Shutdown flushes pending spans and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RunMetrics are the instruments recorded for every report run
type RunMetrics struct {
	runsTotal          metric.Int64Counter
	runDuration        metric.Float64Histogram
	stageDuration      metric.Float64Histogram
	recordsTotal       metric.Int64Counter
	droppedTotal       metric.Int64Counter
	duplicatesTotal    metric.Int64Counter
	reconciliationDiff metric.Float64Histogram
}

// RunObservation is the outcome of one run as seen by the metrics
type RunObservation struct {
	Duration    time.Duration
	Records     int
	Dropped     int
	Duplicates  int
	Diff        float64
	FailedStage string
	Err         error
}

// NewRunMetrics creates the run instruments on meter
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	var m RunMetrics
	var err error

	if m.runsTotal, err = meter.Int64Counter("marginreco_runs",
		metric.WithDescription("Report runs by outcome")); err != nil {
		return nil, err
	}
	if m.runDuration, err = meter.Float64Histogram("marginreco_run_duration",
		metric.WithDescription("Report run duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.stageDuration, err = meter.Float64Histogram("marginreco_stage_duration",
		metric.WithDescription("Pipeline stage duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.recordsTotal, err = meter.Int64Counter("marginreco_records",
		metric.WithDescription("Ledger records reported")); err != nil {
		return nil, err
	}
	if m.droppedTotal, err = meter.Int64Counter("marginreco_join_dropped",
		metric.WithDescription("Primary records without a discount ledger entry")); err != nil {
		return nil, err
	}
	if m.duplicatesTotal, err = meter.Int64Counter("marginreco_join_duplicates",
		metric.WithDescription("Discount ledger rows collapsed by deduplication")); err != nil {
		return nil, err
	}
	if m.reconciliationDiff, err = meter.Float64Histogram("marginreco_reconciliation_diff",
		metric.WithDescription("Absolute difference between derived and ledger margin totals")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordStage records the duration of one pipeline stage
func (m *RunMetrics) RecordStage(ctx context.Context, stage string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	))
}

// RecordRun records a finished run
func (m *RunMetrics) RecordRun(ctx context.Context, obs RunObservation) {
	if m == nil {
		return
	}
	outcome := "success"
	if obs.Err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("failed_stage", obs.FailedStage),
	)
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, obs.Duration.Seconds(), attrs)
	if obs.Err != nil {
		return
	}
	m.recordsTotal.Add(ctx, int64(obs.Records))
	m.droppedTotal.Add(ctx, int64(obs.Dropped))
	m.duplicatesTotal.Add(ctx, int64(obs.Duplicates))
	m.reconciliationDiff.Record(ctx, obs.Diff)
}
