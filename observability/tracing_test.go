package observability

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return exporter
}

func TestStartAndEndSpan(t *testing.T) {
	exporter := setupTestTracing(t)

	_, span := StartSpan(context.Background(), "orchestrate", attribute.String("session_type", "wellness"))
	EndSpan(span, nil)

	_, failed := StartSpan(context.Background(), "agents.invoke")
	EndSpan(failed, errors.New("backend down"))

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "orchestrate" || spans[0].Status.Code != codes.Ok {
		t.Errorf("Unexpected first span: %s %v", spans[0].Name, spans[0].Status)
	}
	found := false
	for _, a := range spans[0].Attributes {
		if a.Key == "session_type" && a.Value.AsString() == "wellness" {
			found = true
		}
	}
	if !found {
		t.Error("Expected session_type attribute on span")
	}
	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != "backend down" {
		t.Errorf("Expected error status, got %v", spans[1].Status)
	}
	if len(spans[1].Events) == 0 {
		t.Error("Expected the error to be recorded as an event")
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	setupTestTracing(t)

	ctx, span := StartSpan(context.Background(), "parent")
	defer span.End()

	header := http.Header{}
	InjectTraceContext(ctx, header)
	if header.Get("traceparent") == "" {
		t.Fatal("Expected a traceparent header")
	}

	restored := ExtractTraceContext(context.Background(), header)
	_, child := Tracer().Start(restored, "child")
	defer child.End()

	if child.SpanContext().TraceID() != span.SpanContext().TraceID() {
		t.Error("Child span should share the parent trace id")
	}
}

func TestExtractTraceContextWithoutHeader(t *testing.T) {
	setupTestTracing(t)
	ctx := context.Background()
	if got := ExtractTraceContext(ctx, nil); got != ctx {
		t.Error("Expected the original context when there is no header")
	}
	restored := ExtractTraceContext(ctx, http.Header{})
	if trace.SpanContextFromContext(restored).IsValid() {
		t.Error("An empty header should not produce a span context")
	}
}
