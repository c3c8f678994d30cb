package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/scttfrdmn/triadkit-go/health"
	"github.com/scttfrdmn/triadkit-go/routing"
	"github.com/scttfrdmn/triadkit-go/triad"
)

type fakeEngine struct {
	mu     sync.Mutex
	calls  []string
	last   *triad.OrchestrationRequest
	result triad.OrchestrationResult
}

func (f *fakeEngine) record(kind string, req *triad.OrchestrationRequest) *triad.OrchestrationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	f.last = req
	r := f.result
	return &r
}

func (f *fakeEngine) Orchestrate(_ context.Context, req *triad.OrchestrationRequest) *triad.OrchestrationResult {
	return f.record("orchestrate", req)
}

func (f *fakeEngine) OrchestrateHybrid(_ context.Context, req *triad.OrchestrationRequest) *triad.OrchestrationResult {
	return f.record("hybrid", req)
}

type fakeRouter struct {
	resp triad.AgentResponse
	err  error
}

func (f fakeRouter) RouteSimpleQuery(context.Context, *triad.OrchestrationRequest) (triad.AgentResponse, error) {
	return f.resp, f.err
}

type fakeHealth health.Snapshot

func (f fakeHealth) Snapshot() health.Snapshot { return health.Snapshot(f) }

func (f fakeHealth) Refresh(context.Context) bool { return f.Healthy }

func newTestServer(engine *fakeEngine, opts ...Option) http.Handler {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewServer(engine, opts...).Handler()
}

const body = `{"user_id":"u1","personality_type":"infj","session_type":"wellness","input":"I feel stretched thin"}`

func do(t *testing.T, h http.Handler, method, path, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOrchestrateEndpoint(t *testing.T) {
	engine := &fakeEngine{result: triad.OrchestrationResult{SessionID: "session_1_1", Mode: triad.ModeOnline, OverallConfidence: 78}}
	h := newTestServer(engine)

	rec := do(t, h, http.MethodPost, "/api/v1/orchestrate", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got triad.OrchestrationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if got.SessionID != "session_1_1" || got.OverallConfidence != 78 {
		t.Errorf("Unexpected result %+v", got)
	}
	if engine.last.PersonalityType != triad.INFJ {
		t.Errorf("Personality type should be normalized, got %q", engine.last.PersonalityType)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request id")
	}
}

func TestOrchestrateEndpointHybrid(t *testing.T) {
	engine := &fakeEngine{}
	h := newTestServer(engine)

	do(t, h, http.MethodPost, "/api/v1/orchestrate?mode=hybrid", body)

	if len(engine.calls) != 1 || engine.calls[0] != "hybrid" {
		t.Errorf("Expected a hybrid call, got %v", engine.calls)
	}
}

func TestOrchestrateEndpointRejectsMalformedJSON(t *testing.T) {
	engine := &fakeEngine{}
	rec := do(t, newTestServer(engine), http.MethodPost, "/api/v1/orchestrate", "{not json")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if len(engine.calls) != 0 {
		t.Error("Malformed bodies must not reach the engine")
	}
}

func TestSessionEndpoint(t *testing.T) {
	engine := &fakeEngine{}
	h := newTestServer(engine)

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/action_planning", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if engine.last.SessionType != triad.SessionActionPlanning {
		t.Errorf("Expected the path session type, got %q", engine.last.SessionType)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/sessions/astrology", body); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown session, got %d", rec.Code)
	}
}

func TestRouteEndpoint(t *testing.T) {
	resp := triad.AgentResponse{Agent: triad.RoleEthical, Confidence: 65}

	tests := []struct {
		name   string
		opts   []Option
		status int
	}{
		{"routed", []Option{WithRouter(fakeRouter{resp: resp})}, http.StatusOK},
		{"invalid request", []Option{WithRouter(fakeRouter{err: errors.New("invalid input: input cannot be empty")})}, http.StatusBadRequest},
		{"not configured", nil, http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&fakeEngine{}, tt.opts...), http.MethodPost, "/api/v1/route", body)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestEstimateEndpoint(t *testing.T) {
	h := newTestServer(&fakeEngine{}, WithModel("gpt-4o-mini"))

	rec := do(t, h, http.MethodPost, "/api/v1/estimate", `{"input":"How do I balance my career and family?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got estimateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("Expected the default model, got %q", got.Model)
	}
	if got.Complexity != "complex" || got.Recommended != routing.PathFullOrchestration {
		t.Errorf("Expected a complex input to recommend full orchestration, got %+v", got)
	}
	if got.FullOrchestration <= got.SingleAgent {
		t.Errorf("Full orchestration should cost more, got %+v", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/estimate", `{"input":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty input, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newTestServer(&fakeEngine{}, WithHealth(fakeHealth{Healthy: false, LastChecked: checked, LastError: "503", Probes: 2}))

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var got struct {
		Status  string          `json:"status"`
		Backend health.Snapshot `json:"backend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if got.Status != "ok" || got.Backend.Healthy || got.Backend.Probes != 2 || got.Backend.LastError != "503" {
		t.Errorf("Unexpected health body %+v", got)
	}
}

func TestHealthEndpointRefresh(t *testing.T) {
	clock := health.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	var checks atomic.Int64
	var failing atomic.Bool
	cache := health.NewHealthCache(health.ProberFunc(func(context.Context) error {
		checks.Add(1)
		if failing.Load() {
			return errors.New("bridge down")
		}
		return nil
	}), health.DefaultConfig(), health.WithClock(clock))
	cache.Healthy(context.Background())
	failing.Store(true)

	h := newTestServer(&fakeEngine{}, WithHealth(cache))
	decode := func(rec *httptest.ResponseRecorder) health.Snapshot {
		t.Helper()
		var got struct {
			Backend health.Snapshot `json:"backend"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		return got.Backend
	}

	if snap := decode(do(t, h, http.MethodGet, "/health", "")); !snap.Healthy || checks.Load() != 1 {
		t.Errorf("Plain /health should report the cached state, got %+v after %d checks", snap, checks.Load())
	}
	snap := decode(do(t, h, http.MethodGet, "/health?refresh=1", ""))
	if snap.Healthy || snap.LastError != "bridge down" || checks.Load() != 2 {
		t.Errorf("refresh=1 should check again, got %+v after %d checks", snap, checks.Load())
	}
}

func TestTraceContextIsPropagated(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	h := newTestServer(&fakeEngine{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != traceID {
		t.Errorf("Request span should join the caller's trace, got %s", got)
	}
	if got := spans[0].Parent.SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("Request span should be parented by the caller's span, got %s", got)
	}
	if got := rec.Header().Get("traceparent"); !strings.Contains(got, traceID) {
		t.Errorf("Expected the trace id in the response traceparent, got %q", got)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestServer(&fakeEngine{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("Expected the caller's request id, got %q", got)
	}
}
