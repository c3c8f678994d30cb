// Package health tracks whether the reasoning backend and the network are
// usable. Results are cached so the orchestrator can consult them on every
// request without probing each time.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config configures a HealthCache.
type Config struct {
	// TTL is how long a probe result is trusted.
	// Default: 30s
	TTL time.Duration `yaml:"ttl"`

	// ProbeTimeout bounds a single probe.
	// Default: 3s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// DefaultConfig returns the health cache defaults.
func DefaultConfig() Config {
	return Config{
		TTL:          30 * time.Second,
		ProbeTimeout: 3 * time.Second,
	}
}

// Prober checks the backend once. A nil error means healthy.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

// Probe calls f(ctx).
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Snapshot is the cached health state.
type Snapshot struct {
	Healthy     bool      `json:"healthy"`
	LastChecked time.Time `json:"last_checked"`
	LastError   string    `json:"last_error,omitempty"`
	Probes      int64     `json:"probes"`
}

// HealthCache remembers the last probe result for TTL. It starts out
// healthy with no check recorded, so the first call always probes.
// Probe failures, including panics, are logged and reported as unhealthy;
// they never reach the caller.
type HealthCache struct {
	prober Prober
	config Config
	clock  Clock
	logger *slog.Logger
	group  singleflight.Group

	mu    sync.RWMutex
	state Snapshot
}

// Option configures a HealthCache.
type Option func(*HealthCache)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(h *HealthCache) { h.clock = c }
}

// WithLogger sets the logger used for probe failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *HealthCache) { h.logger = l }
}

// NewHealthCache creates a cache around prober.
func NewHealthCache(prober Prober, config Config, opts ...Option) *HealthCache {
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 3 * time.Second
	}
	h := &HealthCache{
		prober: prober,
		config: config,
		clock:  SystemClock{},
		logger: slog.Default(),
		state:  Snapshot{Healthy: true},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthy returns the cached result while it is younger than TTL and
// probes otherwise. Concurrent refreshes share one probe.
func (h *HealthCache) Healthy(ctx context.Context) bool {
	h.mu.RLock()
	state := h.state
	h.mu.RUnlock()

	if !state.LastChecked.IsZero() && h.clock.Now().Sub(state.LastChecked) < h.config.TTL {
		return state.Healthy
	}

	v, _, _ := h.group.Do("probe", func() (interface{}, error) {
		return h.refresh(ctx), nil
	})
	return v.(bool)
}

// Refresh probes unconditionally and stores the result.
func (h *HealthCache) Refresh(ctx context.Context) bool {
	v, _, _ := h.group.Do("probe", func() (interface{}, error) {
		return h.refresh(ctx), nil
	})
	return v.(bool)
}

// Snapshot returns the cached state without probing.
func (h *HealthCache) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *HealthCache) refresh(ctx context.Context) bool {
	err := h.probe(ctx)
	healthy := err == nil

	h.mu.Lock()
	h.state.Healthy = healthy
	h.state.LastChecked = h.clock.Now()
	h.state.Probes++
	h.state.LastError = ""
	if err != nil {
		h.state.LastError = err.Error()
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Warn("backend health probe failed", "error", err)
	} else {
		h.logger.Debug("backend health probe passed")
	}
	return healthy
}

func (h *HealthCache) probe(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	if h.prober == nil {
		return fmt.Errorf("no prober configured")
	}
	// The result is shared by every caller, so one caller going away must
	// not record the backend as unhealthy.
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.ProbeTimeout)
	defer cancel()
	return h.prober.Probe(probeCtx)
}
