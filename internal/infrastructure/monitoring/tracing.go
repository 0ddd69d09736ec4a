// Package monitoring 提供日志、指标与分布式追踪的实现
package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// TracingManager owns the tracer provider for the process.
// TracingManager 持有进程级 TracerProvider；未启用时 tracer 为全局 no-op。
type TracingManager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	logger   logger.Logger
}

// NewTracingManager exports spans to Jaeger when cfg.Enabled. Incoming W3C trace
// context is honoured: a sampled parent is always sampled.
func NewTracingManager(cfg config.TracingConfig, log logger.Logger) (*TracingManager, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	log = log.WithComponent("tracing")
	name := cfg.ServiceName
	if name == "" {
		name = constants.ServiceName
	}
	if !cfg.Enabled {
		log.Info(context.Background(), "Tracing is disabled")
		return &TracingManager{tracer: otel.Tracer(name), logger: log}, nil
	}

	provider, err := newJaegerProvider(cfg, name)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(context.Background(), "Tracing initialized",
		logger.String("endpoint", cfg.JaegerEndpoint),
		logger.Any("sample_rate", cfg.SamplingRate),
	)
	return &TracingManager{tracer: provider.Tracer(name), provider: provider, logger: log}, nil
}

func newJaegerProvider(cfg config.TracingConfig, name string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceNameKey.String(name),
		attribute.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	), nil
}

// Tracer is handed to the HTTP middleware and the auth application service.
func (tm *TracingManager) Tracer() trace.Tracer {
	return tm.tracer
}

// Shutdown flushes buffered spans. 未启用时直接返回。
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.logger.Error(ctx, "Failed to shutdown tracing provider", err)
		return err
	}
	tm.logger.Info(ctx, "Tracing provider shut down")
	return nil
}
