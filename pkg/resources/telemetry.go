package resources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// HookFn runs once the providers are installed; it is where the zerolog to
// OTel log bridge gets attached.
type HookFn func(ctx context.Context) (context.Context, error)

type telemetryOptions struct {
	endpoint string
	insecure bool
}

type TelemetryOption func(*telemetryOptions)

func WithInsecure() TelemetryOption {
	return func(o *telemetryOptions) {
		o.insecure = true
	}
}

func WithEndpoint(endpoint string) TelemetryOption {
	return func(o *telemetryOptions) {
		o.endpoint = endpoint
	}
}

// Observe installs OTLP trace, metric and log providers when OTEL_ENABLED is
// set. Otherwise the global no-op providers stay in place and hookFn is not
// called.
func Observe(ctx context.Context, name string, version string, env string, hookFn HookFn, opts ...TelemetryOption) (context.Context, StopFn, error) {
	noop := func(context.Context, time.Duration) {}

	if !viper.GetBool("OTEL_ENABLED") {
		log.Ctx(ctx).Info().Str("stage", "startup").Str("component", "telemetry").Msg("telemetry disabled")
		return ctx, noop, nil
	}

	options := &telemetryOptions{endpoint: viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")}
	for _, opt := range opts {
		opt(options)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", name),
			attribute.String("service.version", version),
			attribute.String("deployment.environment", env),
		),
	)
	if err != nil {
		return ctx, noop, fmt.Errorf("failed to create telemetry resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(options.endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(options.endpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(options.endpoint)}

	if options.insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return ctx, noop, fmt.Errorf("failed to create the OTLP trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return ctx, noop, fmt.Errorf("failed to create the OTLP metric exporter: %w", err)
	}

	logExporter, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return ctx, noop, fmt.Errorf("failed to create the OTLP log exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter), sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)), sdkmetric.WithResource(res))
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)), sdklog.WithResource(res))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	global.SetLoggerProvider(lp)

	err = runtime.Start(runtime.WithMeterProvider(mp))
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("component", "telemetry").Msg("runtime metrics unavailable")
	}

	if hookFn != nil {
		ctx, err = hookFn(ctx)
		if err != nil {
			return ctx, noop, fmt.Errorf("failed to bridge logs: %w", err)
		}
	}

	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", "telemetry").Str("endpoint", options.endpoint).Msg("telemetry enabled")

	stop := func(ctx context.Context, timeout time.Duration) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		err := errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx), lp.Shutdown(ctx))
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("stage", "shut down").Str("component", "telemetry").Msg("failed to flush telemetry")
		}
	}

	return ctx, stop, nil
}
