package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var globalMeterProvider *sdkmetric.MeterProvider

// InitMetrics installs a global meter provider that exports through the
// Prometheus default registry. Serve it with promhttp.Handler().
func InitMetrics(ctx context.Context, serviceName string) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	globalMeterProvider = provider
	return provider, nil
}

// Meter returns the package meter from the current global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// Instruments holds every counter and histogram the engine records. A nil
// *Instruments is valid and records nothing.
type Instruments struct {
	requests      metric.Int64Counter
	latency       metric.Float64Histogram
	agentCalls    metric.Int64Counter
	agentLatency  metric.Float64Histogram
	cacheLookups  metric.Int64Counter
	cacheWrites   metric.Int64Counter
	fallbacks     metric.Int64Counter
	hybridWinners metric.Int64Counter
}

// NewInstruments creates the instruments on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	if in.requests, err = meter.Int64Counter("triad.orchestration.requests",
		metric.WithDescription("Orchestration requests by resolved mode and synthesis method"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if in.latency, err = meter.Float64Histogram("triad.orchestration.latency",
		metric.WithDescription("End-to-end orchestration latency"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}
	if in.agentCalls, err = meter.Int64Counter("triad.agent.calls",
		metric.WithDescription("Agent backend calls by role and outcome"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create agent counter: %w", err)
	}
	if in.agentLatency, err = meter.Float64Histogram("triad.agent.latency",
		metric.WithDescription("Per-agent backend latency"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("failed to create agent latency histogram: %w", err)
	}
	if in.cacheLookups, err = meter.Int64Counter("triad.cache.lookups",
		metric.WithDescription("Cache lookups by result (hit, miss, error)"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create cache lookup counter: %w", err)
	}
	if in.cacheWrites, err = meter.Int64Counter("triad.cache.writes",
		metric.WithDescription("Cache writes by result (ok, error)"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create cache write counter: %w", err)
	}
	if in.fallbacks, err = meter.Int64Counter("triad.fallbacks",
		metric.WithDescription("Fallback transitions by reason"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create fallback counter: %w", err)
	}
	if in.hybridWinners, err = meter.Int64Counter("triad.hybrid.winner",
		metric.WithDescription("Hybrid races by winning branch"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("failed to create hybrid counter: %w", err)
	}
	return &in, nil
}

// DefaultInstruments creates instruments on the global meter. Instrument
// creation only fails on invalid names, so an error here yields nil.
func DefaultInstruments() *Instruments {
	in, err := NewInstruments(Meter())
	if err != nil {
		return nil
	}
	return in
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// RecordRequest records a finished orchestration.
func (in *Instruments) RecordRequest(ctx context.Context, mode, method string, cacheUsed bool, elapsed time.Duration) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("synthesis_method", method),
		attribute.Bool("cache_used", cacheUsed),
	)
	in.requests.Add(ctx, 1, attrs)
	in.latency.Record(ctx, ms(elapsed), attrs)
}

// RecordAgentCall records one agent backend call.
func (in *Instruments) RecordAgentCall(ctx context.Context, role string, degraded bool, elapsed time.Duration) {
	if in == nil {
		return
	}
	status := "success"
	if degraded {
		status = "degraded"
	}
	attrs := metric.WithAttributes(attribute.String("agent.role", role), attribute.String("status", status))
	in.agentCalls.Add(ctx, 1, attrs)
	in.agentLatency.Record(ctx, ms(elapsed), attrs)
}

// RecordCacheLookup records a lookup result: "hit", "miss" or "error".
func (in *Instruments) RecordCacheLookup(ctx context.Context, result string) {
	if in == nil {
		return
	}
	in.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordCacheWrite records a write result: "ok" or "error".
func (in *Instruments) RecordCacheWrite(ctx context.Context, result string) {
	if in == nil {
		return
	}
	in.cacheWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordFallback records a transition to a lower tier of the fallback chain.
func (in *Instruments) RecordFallback(ctx context.Context, reason string) {
	if in == nil {
		return
	}
	in.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordHybridWinner records which branch answered a hybrid request.
func (in *Instruments) RecordHybridWinner(ctx context.Context, branch string) {
	if in == nil {
		return
	}
	in.hybridWinners.Add(ctx, 1, metric.WithAttributes(attribute.String("branch", branch)))
}

// ShutdownMetrics flushes and stops the meter provider installed by InitMetrics.
func ShutdownMetrics(ctx context.Context) error {
	if globalMeterProvider != nil {
		return globalMeterProvider.Shutdown(ctx)
	}
	return nil
}
