package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingProber struct {
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (p *countingProber) Probe(ctx context.Context) error {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func TestHealthCacheInitialState(t *testing.T) {
	h := NewHealthCache(&countingProber{}, DefaultConfig())
	snap := h.Snapshot()
	if !snap.Healthy {
		t.Error("Cache should start healthy")
	}
	if !snap.LastChecked.IsZero() {
		t.Error("Cache should start with no recorded check")
	}
}

func TestHealthCacheTTL(t *testing.T) {
	clock := NewFakeClock(time.Unix(1_700_000_000, 0))
	prober := &countingProber{}
	h := NewHealthCache(prober, Config{TTL: 30 * time.Second, ProbeTimeout: time.Second}, WithClock(clock))
	ctx := context.Background()

	if !h.Healthy(ctx) {
		t.Fatal("Expected healthy")
	}
	if prober.calls.Load() != 1 {
		t.Fatalf("First call should probe, got %d probes", prober.calls.Load())
	}

	clock.Advance(29 * time.Second)
	h.Healthy(ctx)
	if prober.calls.Load() != 1 {
		t.Errorf("Fresh result should be reused, got %d probes", prober.calls.Load())
	}

	clock.Advance(time.Second)
	h.Healthy(ctx)
	if prober.calls.Load() != 2 {
		t.Errorf("Stale result should trigger a probe, got %d probes", prober.calls.Load())
	}
}

func TestHealthCacheFailureIsUnhealthy(t *testing.T) {
	clock := NewFakeClock(time.Unix(1_700_000_000, 0))
	prober := &countingProber{err: errors.New("connection refused")}
	h := NewHealthCache(prober, DefaultConfig(), WithClock(clock))

	if h.Healthy(context.Background()) {
		t.Fatal("Expected unhealthy after a failing probe")
	}
	snap := h.Snapshot()
	if snap.LastError != "connection refused" {
		t.Errorf("Expected last error recorded, got %q", snap.LastError)
	}
	if !snap.LastChecked.Equal(clock.Now()) {
		t.Errorf("Expected LastChecked %v, got %v", clock.Now(), snap.LastChecked)
	}

	prober.err = nil
	clock.Advance(31 * time.Second)
	if !h.Healthy(context.Background()) {
		t.Error("Expected recovery after the next probe succeeds")
	}
}

func TestHealthCachePanicIsUnhealthy(t *testing.T) {
	h := NewHealthCache(ProberFunc(func(context.Context) error {
		panic("boom")
	}), DefaultConfig())

	if h.Healthy(context.Background()) {
		t.Error("A panicking probe must be reported as unhealthy")
	}
}

func TestHealthCacheProbeTimeout(t *testing.T) {
	prober := &countingProber{delay: time.Second}
	h := NewHealthCache(prober, Config{TTL: time.Minute, ProbeTimeout: 20 * time.Millisecond})

	start := time.Now()
	if h.Healthy(context.Background()) {
		t.Error("A timed out probe must be reported as unhealthy")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Probe should have been bounded by ProbeTimeout")
	}
}

func TestHealthCacheIgnoresCallerCancellation(t *testing.T) {
	clock := NewFakeClock(time.Unix(1_700_000_000, 0))
	prober := ProberFunc(func(ctx context.Context) error { return ctx.Err() })
	h := NewHealthCache(prober, DefaultConfig(), WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !h.Healthy(ctx) {
		t.Error("A cancelled caller must not make a healthy backend look unhealthy")
	}

	clock.Advance(10 * time.Second)
	if !h.Healthy(context.Background()) {
		t.Error("Other callers should see the backend as healthy")
	}
	if snap := h.Snapshot(); snap.LastError != "" {
		t.Errorf("Expected no recorded error, got %q", snap.LastError)
	}
}

func TestHealthCacheRefreshForcesCheck(t *testing.T) {
	clock := NewFakeClock(time.Unix(1_700_000_000, 0))
	prober := &countingProber{}
	h := NewHealthCache(prober, DefaultConfig(), WithClock(clock))
	ctx := context.Background()

	h.Healthy(ctx)
	prober.err = errors.New("bridge down")
	if !h.Healthy(ctx) {
		t.Fatal("A fresh cached result should be returned without checking again")
	}
	if h.Refresh(ctx) {
		t.Error("Refresh should check again and report the failure")
	}
	if prober.calls.Load() != 2 {
		t.Errorf("Expected 2 checks, got %d", prober.calls.Load())
	}
	if h.Snapshot().Healthy {
		t.Error("Refresh should store its result")
	}
}

func TestHealthCacheConcurrentRefreshCollapses(t *testing.T) {
	prober := &countingProber{delay: 50 * time.Millisecond}
	h := NewHealthCache(prober, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Healthy(context.Background())
		}()
	}
	wg.Wait()

	if prober.calls.Load() != 1 {
		t.Errorf("Expected one shared probe, got %d", prober.calls.Load())
	}
}

func TestHealthCacheNilProber(t *testing.T) {
	h := NewHealthCache(nil, DefaultConfig())
	if h.Healthy(context.Background()) {
		t.Error("A cache with no prober cannot report healthy after probing")
	}
}

func TestHTTPProber(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	p := NewHTTPProber(server.URL + "/health")
	if err := p.Probe(context.Background()); err != nil {
		t.Errorf("Expected healthy, got %v", err)
	}

	status.Store(http.StatusServiceUnavailable)
	if err := p.Probe(context.Background()); err == nil {
		t.Error("Expected 503 to be unhealthy")
	}

	server.Close()
	if err := p.Probe(context.Background()); err == nil {
		t.Error("Expected a closed server to be unhealthy")
	}
}

func TestConnectivity(t *testing.T) {
	ctx := context.Background()
	if !StaticConnectivity(true).Online(ctx) {
		t.Error("StaticConnectivity(true) should be online")
	}
	if StaticConnectivity(false).Online(ctx) {
		t.Error("StaticConnectivity(false) should be offline")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	if !(DialConnectivity{Address: addr, Timeout: time.Second}).Online(ctx) {
		t.Error("Expected listener address to be reachable")
	}
	_ = ln.Close()
	if (DialConnectivity{Address: addr, Timeout: 200 * time.Millisecond}).Online(ctx) {
		t.Error("Expected closed listener address to be unreachable")
	}
}
