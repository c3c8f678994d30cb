package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

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
)

// System is an orchestrator with the resources it owns.
type System struct {
	Orchestrator *orchestrator.Orchestrator
	Backend      llm.LLM
	Health       *health.HealthCache

	clients map[string]*redis.Client
}

// Close waits for background hybrid branches and releases the Redis clients.
func (s *System) Close() error {
	if s == nil {
		return nil
	}
	if s.Orchestrator != nil {
		s.Orchestrator.Wait()
	}
	var errs []error
	for _, client := range s.clients {
		errs = append(errs, client.Close())
	}
	return errors.Join(errs...)
}

// redisClient returns one client per URL so the cache and pipeline stores
// share a connection pool when they point at the same server.
func (s *System) redisClient(url string) (*redis.Client, error) {
	if client, ok := s.clients[url]; ok {
		return client, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	if s.clients == nil {
		s.clients = make(map[string]*redis.Client)
	}
	client := redis.NewClient(opts)
	s.clients[url] = client
	return client, nil
}

// Build assembles every component described by c. logger and instruments
// may be nil.
func Build(ctx context.Context, c *Config, logger *slog.Logger, instruments *observability.Instruments) (*System, error) {
	if c == nil {
		return nil, errors.New("config is nil")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := llm.New(ctx, c.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm backend: %w", err)
	}
	backend = middleware.Wrap(backend, c.Middleware)

	sys := &System{Backend: backend}

	store, err := sys.cacheStore(c.Cache)
	if err != nil {
		_ = sys.Close()
		return nil, err
	}
	embedder, err := newEmbedder(c.Cache, c.LLM)
	if err != nil {
		_ = sys.Close()
		return nil, err
	}
	pipelines, err := sys.pipelineStore(c.Pipelines)
	if err != nil {
		_ = sys.Close()
		return nil, err
	}

	cacheOpts := []cache.Option{cache.WithLogger(logger), cache.WithInstruments(instruments)}
	if c.Safety.Redact {
		cacheOpts = append(cacheOpts, cache.WithRedactor(safety.NewRedactor()))
	}

	deps := orchestrator.Dependencies{
		Invoker: agents.NewInvoker(backend, c.Agents,
			agents.WithLogger(logger), agents.WithInstruments(instruments)),
		Synthesizer: coordinator.New(backend, c.Coordinator, logger),
		Cache:       cache.NewManager(store, embedder, c.Cache.Config, cacheOpts...),
		Fallback: fallback.NewGenerator(pipelines,
			fallback.WithLogger(logger), fallback.WithInstruments(instruments)),
		Logger:      logger,
		Instruments: instruments,
	}
	if c.Safety.ScreenInput {
		deps.Guard = safety.NewInjectionDetector(c.Safety.InjectionThreshold)
	}
	if c.Health.ConnectivityAddress != "" {
		deps.Connectivity = health.DialConnectivity{
			Address: c.Health.ConnectivityAddress,
			Timeout: c.Health.ConnectivityTimeout,
		}
	}
	if c.Health.ProbeURL != "" {
		sys.Health = health.NewHealthCache(health.NewHTTPProber(c.Health.ProbeURL), c.Health.Config, health.WithLogger(logger))
		deps.Health = sys.Health
	}

	sys.Orchestrator = orchestrator.New(deps, c.Orchestrator)
	logger.Info("orchestrator ready",
		"provider", c.LLM.Provider,
		"model", backend.Model(),
		"mode", c.Orchestrator.Mode,
		"cache", c.Cache.Backend,
		"embedder", c.Cache.Embedder,
		"pipelines", c.Pipelines.Backend,
		"screen_input", c.Safety.ScreenInput,
	)
	return sys, nil
}

func (s *System) cacheStore(c CacheConfig) (cache.Store, error) {
	if c.Backend != BackendRedis {
		return cache.NewMemoryStore(), nil
	}
	client, err := s.redisClient(c.RedisURL)
	if err != nil {
		return nil, err
	}
	return cache.NewRedisStore(client, c.KeyPrefix, c.TTL), nil
}

func (s *System) pipelineStore(c PipelineConfig) (fallback.PipelineStore, error) {
	if c.Backend != BackendRedis {
		return fallback.NewMemoryPipelineStore(), nil
	}
	client, err := s.redisClient(c.RedisURL)
	if err != nil {
		return nil, err
	}
	return fallback.NewRedisPipelineStore(client, c.KeyPrefix, c.TTL), nil
}

func newEmbedder(c CacheConfig, provider llm.ProviderConfig) (cache.Embedder, error) {
	if c.Embedder != EmbedderOpenAI {
		return cache.NewHashEmbedder(c.HashDimension), nil
	}
	apiKey := ""
	if provider.Provider == llm.ProviderOpenAI {
		apiKey = provider.APIKey
	}
	embedder, err := cache.NewOpenAIEmbedder(apiKey, c.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
