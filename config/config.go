// Package config loads triadkit settings from YAML and the environment.
//
// Every component keeps its own Config struct with a DefaultConfig
// constructor; this package only aggregates them. Load starts from the
// defaults, overlays the YAML file and then TRIAD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/agents"
	"github.com/scttfrdmn/triadkit-go/cache"
	"github.com/scttfrdmn/triadkit-go/coordinator"
	"github.com/scttfrdmn/triadkit-go/fallback"
	"github.com/scttfrdmn/triadkit-go/health"
	"github.com/scttfrdmn/triadkit-go/middleware"
	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/orchestrator"
	"github.com/scttfrdmn/triadkit-go/safety"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Embedders.
const (
	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"
)

// Config is the full triadkit configuration.
type Config struct {
	LLM          llm.ProviderConfig          `yaml:"llm"`
	Middleware   middleware.StackConfig      `yaml:"middleware"`
	Agents       agents.Config               `yaml:"agents"`
	Coordinator  coordinator.Config          `yaml:"coordinator"`
	Cache        CacheConfig                 `yaml:"cache"`
	Pipelines    PipelineConfig              `yaml:"pipelines"`
	Health       HealthConfig                `yaml:"health"`
	Orchestrator orchestrator.Options        `yaml:"orchestrator"`
	Safety       SafetyConfig                `yaml:"safety"`
	Logging      observability.LoggingConfig `yaml:"logging"`
	Tracing      observability.TracingConfig `yaml:"tracing"`
	// ListenAddr is where "triadkit serve" listens for the API and /metrics.
	ListenAddr string `yaml:"listen_addr"`
}

// CacheConfig selects the response cache store and embedder.
type CacheConfig struct {
	cache.Config `yaml:",inline"`

	Backend   string        `yaml:"backend"`
	RedisURL  string        `yaml:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`

	Embedder       string `yaml:"embedder"`
	EmbeddingModel string `yaml:"embedding_model"`
	HashDimension  int    `yaml:"hash_dimension"`
}

// PipelineConfig selects where template pipeline records live.
type PipelineConfig struct {
	Backend   string        `yaml:"backend"`
	RedisURL  string        `yaml:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// HealthConfig configures mode selection checks.
type HealthConfig struct {
	health.Config `yaml:",inline"`

	// ProbeURL is GET-probed for backend health; empty skips the probe.
	ProbeURL string `yaml:"probe_url"`
	// ConnectivityAddress is a host:port dialed to detect the network;
	// empty assumes connectivity.
	ConnectivityAddress string        `yaml:"connectivity_address"`
	ConnectivityTimeout time.Duration `yaml:"connectivity_timeout"`
}

// SafetyConfig controls input screening and cache redaction.
type SafetyConfig struct {
	// ScreenInput serves inputs that look like prompt injection offline.
	ScreenInput        bool `yaml:"screen_input"`
	InjectionThreshold int  `yaml:"injection_threshold"`
	// Redact scrubs credentials and PII from cached inputs.
	Redact bool `yaml:"redact"`
}

// Default returns a configuration that runs against a local Ollama bridge
// with in-memory stores.
func Default() Config {
	return Config{
		LLM:         llm.DefaultProviderConfig(),
		Middleware:  middleware.DefaultStackConfig(),
		Agents:      agents.DefaultConfig(),
		Coordinator: coordinator.DefaultConfig(),
		Cache: CacheConfig{
			Config:        cache.DefaultConfig(),
			Backend:       BackendMemory,
			KeyPrefix:     cache.DefaultKeyPrefix,
			TTL:           48 * time.Hour,
			Embedder:      EmbedderHash,
			HashDimension: cache.DefaultHashDimension,
		},
		Pipelines: PipelineConfig{
			Backend:   BackendMemory,
			KeyPrefix: fallback.DefaultPipelinePrefix,
		},
		Health: HealthConfig{
			Config:              health.DefaultConfig(),
			ConnectivityTimeout: 2 * time.Second,
		},
		Orchestrator: orchestrator.DefaultOptions(),
		Safety: SafetyConfig{
			ScreenInput:        true,
			InjectionThreshold: safety.DefaultInjectionThreshold,
			Redact:             true,
		},
		Logging:      observability.DefaultLoggingConfig(),
		Tracing:      observability.DefaultTracingConfig(),
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBytes parses YAML over the defaults without consulting the
// environment.
func LoadBytes(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overlays TRIAD_* environment variables.
func (c *Config) ApplyEnv() error {
	c.LLM.Provider = getEnv("TRIAD_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("TRIAD_LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("TRIAD_LLM_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("TRIAD_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Bedrock.Region = getEnv("TRIAD_BEDROCK_REGION", c.LLM.Bedrock.Region)

	c.Orchestrator.Mode = triad.Mode(getEnv("TRIAD_MODE", string(c.Orchestrator.Mode)))

	if v := os.Getenv("TRIAD_REDIS_URL"); v != "" {
		c.Cache.Backend, c.Cache.RedisURL = BackendRedis, v
		c.Pipelines.Backend, c.Pipelines.RedisURL = BackendRedis, v
	}
	c.Cache.Backend = getEnv("TRIAD_CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Embedder = getEnv("TRIAD_EMBEDDER", c.Cache.Embedder)

	c.Health.ProbeURL = getEnv("TRIAD_HEALTH_URL", c.Health.ProbeURL)
	c.Health.ConnectivityAddress = getEnv("TRIAD_CONNECTIVITY_ADDRESS", c.Health.ConnectivityAddress)

	c.Safety.ScreenInput = getBoolEnv("TRIAD_SCREEN_INPUT", c.Safety.ScreenInput)
	c.Safety.Redact = getBoolEnv("TRIAD_REDACT", c.Safety.Redact)

	c.Logging.Level = getEnv("TRIAD_LOG_LEVEL", c.Logging.Level)
	c.Logging.Structured = getBoolEnv("TRIAD_LOG_JSON", c.Logging.Structured)
	c.Tracing.OTLPEndpoint = getEnv("TRIAD_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
	c.ListenAddr = getEnv("TRIAD_LISTEN_ADDR", c.ListenAddr)

	var errs []error
	var err error
	if c.Orchestrator.HybridBound, err = getDurationEnv("TRIAD_HYBRID_BOUND", c.Orchestrator.HybridBound); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.MaxAge, err = getDurationEnv("TRIAD_CACHE_MAX_AGE", c.Cache.MaxAge); err != nil {
		errs = append(errs, err)
	}
	if c.Health.TTL, err = getDurationEnv("TRIAD_HEALTH_TTL", c.Health.TTL); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !validProvider(c.LLM.Provider) {
		add("llm.provider %q must be one of %s", c.LLM.Provider, strings.Join(llm.Providers(), ", "))
	}
	switch c.Orchestrator.Mode {
	case "", triad.ModeOnline, triad.ModeOffline, triad.ModeHybrid:
	default:
		add("orchestrator.mode %q must be online, offline, hybrid or empty", c.Orchestrator.Mode)
	}
	if c.Orchestrator.HybridBound <= 0 {
		add("orchestrator.hybrid_bound must be positive")
	}

	if c.Cache.MaxAge <= 0 {
		add("cache.max_age must be positive")
	}
	if c.Cache.TopN <= 0 {
		add("cache.top_n must be positive")
	}
	if c.Cache.MinSimilarity < -1 || c.Cache.MinSimilarity > 1 {
		add("cache.min_similarity must be within [-1, 1]")
	}
	errs = append(errs, validateBackend("cache", c.Cache.Backend, c.Cache.RedisURL)...)
	switch c.Cache.Embedder {
	case EmbedderHash, EmbedderOpenAI:
	default:
		add("cache.embedder %q must be hash or openai", c.Cache.Embedder)
	}
	errs = append(errs, validateBackend("pipelines", c.Pipelines.Backend, c.Pipelines.RedisURL)...)

	if c.Health.TTL <= 0 {
		add("health.ttl must be positive")
	}
	if c.Health.ProbeTimeout <= 0 {
		add("health.probe_timeout must be positive")
	}
	if c.Safety.InjectionThreshold < 0 {
		add("safety.injection_threshold must not be negative")
	}
	if r := c.Middleware.Retry; r != nil && r.MaxAttempts < 1 {
		add("middleware.retry.max_attempts must be at least 1")
	}
	if t := c.Middleware.Timeout; t != nil && t.Timeout <= 0 {
		add("middleware.timeout.timeout must be positive")
	}
	if cb := c.Middleware.CircuitBreaker; cb != nil && cb.FailureThreshold < 1 {
		add("middleware.circuit_breaker.failure_threshold must be at least 1")
	}
	if rl := c.Middleware.RateLimit; rl != nil && (rl.Rate <= 0 || rl.Capacity < 1) {
		add("middleware.rate_limit needs a positive rate and capacity")
	}
	return errors.Join(errs...)
}

func validateBackend(section, backend, redisURL string) []error {
	switch backend {
	case BackendMemory:
		return nil
	case BackendRedis:
		if redisURL == "" {
			return []error{fmt.Errorf("%s.redis_url is required for the redis backend", section)}
		}
		return nil
	default:
		return []error{fmt.Errorf("%s.backend %q must be memory or redis", section, backend)}
	}
}

func validProvider(name string) bool {
	if name == "" {
		return true
	}
	for _, p := range llm.Providers() {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
