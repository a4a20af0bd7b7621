// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for review runs.
//
// The review packages use otel.Tracer and otel.Meter directly. Init installs
// the global providers those calls resolve to; without Init they are no-ops.
// The executor's Prometheus collectors live in the default registry and are
// served by MetricsHandler together with the otel metrics when the
// prometheus exporter is selected.
//
// Exporters write to stderr so that JSON results on stdout stay parseable.
//
// # Thread Safety
//
// Call Init once at startup. Everything else is safe for concurrent use.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNilContext is returned by Init for a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter is returned for an exporter name Init does not know.
	ErrUnknownExporter = errors.New("unknown exporter")
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this process in traces and metrics.
	ServiceName string `yaml:"service_name" json:"service_name" validate:"required"`

	// ServiceVersion is reported as service.version.
	ServiceVersion string `yaml:"-" json:"service_version"`

	// TraceExporter is "otlp", "stdout" or "none".
	TraceExporter string `yaml:"trace_exporter" json:"trace_exporter" validate:"oneof=otlp stdout none"`

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string `yaml:"metric_exporter" json:"metric_exporter" validate:"oneof=prometheus stdout none"`

	// OTLPEndpoint is the OTLP gRPC receiver for traces.
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool `yaml:"otlp_insecure" json:"otlp_insecure"`

	// MetricsAddr is where Serve listens for /metrics scrapes, e.g. ":9464".
	// Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// DefaultConfig disables both exporters. A CLI run is short-lived and
// usually has nothing to export to.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "codereview",
		ServiceVersion: "dev",
		TraceExporter:  "none",
		MetricExporter: "none",
		OTLPEndpoint:   "localhost:4317",
		OTLPInsecure:   true,
	}
}

// Init installs the global tracer and meter providers.
//
// Description:
//
//	Builds one provider per enabled signal and registers it with otel.
//	After Init, otel.Tracer and otel.Meter calls across the review
//	packages export through the configured backends.
//
// Outputs:
//
//	shutdown - Flushes and stops every provider. Must be called.
//	error - ErrNilContext, or ErrUnknownExporter (wrapped) for a bad name.
//
// Example:
//
//	shutdown, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceExporter != "none" {
		tp, err := initTracer(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	if cfg.MetricExporter != "none" {
		mp, err := initMeter(cfg, res)
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	return shutdown, nil
}

func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)

	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

var (
	prometheusHandler   http.Handler
	prometheusHandlerMu sync.RWMutex
)

// MetricsHandler returns the /metrics handler, or nil unless the
// prometheus exporter was initialized.
func MetricsHandler() http.Handler {
	prometheusHandlerMu.RLock()
	defer prometheusHandlerMu.RUnlock()
	return prometheusHandler
}

func initMeter(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case "prometheus":
		// Registers with the default prometheus registry, next to the
		// executor's promauto collectors.
		exporter, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		prometheusHandlerMu.Lock()
		prometheusHandler = promhttp.Handler()
		prometheusHandlerMu.Unlock()

		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil

	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}

		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

// Serve exposes MetricsHandler on addr until ctx is done.
//
// Returns immediately with nil when no handler is installed. The listener
// is bound before Serve returns, so a bad address fails synchronously.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	handler := MetricsHandler()
	if handler == nil || addr == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// LoggerWithTrace adds trace_id and span_id of ctx's span to logger.
// The logger is returned unchanged when ctx carries no valid span.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
