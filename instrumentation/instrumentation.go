package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceVersion is used when none is provided.
const DefaultServiceVersion = "unknown"

// scopePrefix namespaces meters and tracers created by this package.
const scopePrefix = "github.com/tippexs/nginx-openid-connect/"

// Config holds instrumentation configuration.
type Config struct {
	// ServiceName identifies the service in exported telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Enabled controls whether instrumentation is active. When false,
	// no-op providers are used (zero overhead).
	Enabled bool

	// MeterProvider and TracerProvider override the globally registered
	// providers. Only consulted when Enabled.
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider

	// Resource allows custom resource attributes. If nil, a default
	// resource is created from service name and version.
	Resource *resource.Resource
}

// Instrumentation provides OpenTelemetry instrumentation components.
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance.
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = "oidc-gateway"
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		inst.meterProvider = config.MeterProvider
		if inst.meterProvider == nil {
			inst.meterProvider = otel.GetMeterProvider()
		}
		inst.tracerProvider = config.TracerProvider
		if inst.tracerProvider == nil {
			inst.tracerProvider = otel.GetTracerProvider()
		}
	} else {
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	var err error
	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// Shutdown gracefully shuts down all registered instrumentation
// components. Call when the application is terminating.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope (e.g. "gateway",
// "storage", "idp").
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(scopePrefix + scope)
}

// Tracer returns a named tracer for the given scope.
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(scopePrefix + scope)
}

// Metrics returns the metrics holder for recording metric values. Safe on
// a nil receiver, in which case it returns nil (and the nil *Metrics
// recording helpers are no-ops).
func (i *Instrumentation) Metrics() *Metrics {
	if i == nil {
		return nil
	}
	return i.metrics
}
