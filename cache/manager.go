package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// Config configures lookups.
type Config struct {
	// MaxAge is the freshness window; older entries are never returned.
	MaxAge time.Duration `yaml:"max_age"`
	// TopN is how many of the most similar candidates are considered.
	TopN int `yaml:"top_n"`
	// MinSimilarity, when positive, drops candidates below this cosine
	// similarity.
	MinSimilarity  float64 `yaml:"min_similarity"`
	CandidateLimit int     `yaml:"candidate_limit"`
}

// DefaultConfig returns the lookup defaults.
func DefaultConfig() Config {
	return Config{
		MaxAge:         24 * time.Hour,
		TopN:           5,
		MinSimilarity:  0,
		CandidateLimit: DefaultCandidateLimit,
	}
}

// Hit is a successful lookup.
type Hit struct {
	Entry      Entry
	Similarity float64
}

// Manager performs cache lookups and writes. Failures are logged and turn
// into misses or dropped writes.
type Manager struct {
	store       Store
	embedder    Embedder
	config      Config
	now         func() time.Time
	logger      *slog.Logger
	instruments *observability.Instruments
	redactor    Redactor
}

// Redactor scrubs sensitive data from inputs before they are embedded or
// stored. *safety.Redactor implements it.
type Redactor interface {
	Redact(text string) string
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow sets the time source.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithInstruments sets the metric instruments.
func WithInstruments(in *observability.Instruments) Option {
	return func(m *Manager) { m.instruments = in }
}

// WithRedactor scrubs request inputs before they reach the embedder or the
// store.
func WithRedactor(r Redactor) Option {
	return func(m *Manager) { m.redactor = r }
}

// NewManager creates a manager over store and embedder.
func NewManager(store Store, embedder Embedder, config Config, opts ...Option) *Manager {
	if config.TopN <= 0 {
		config.TopN = 5
	}
	m := &Manager{
		store:    store,
		embedder: embedder,
		config:   config,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lookup finds a reusable response for req. Among fresh candidates the TopN
// most similar are kept and the most recent of those is returned.
func (m *Manager) Lookup(ctx context.Context, req *triad.OrchestrationRequest) (*Hit, bool) {
	if m == nil {
		return nil, false
	}
	hit, err := m.lookup(ctx, req)
	switch {
	case err != nil:
		m.logger.WarnContext(ctx, "cache lookup failed", "error", err)
		m.instruments.RecordCacheLookup(ctx, "error")
		return nil, false
	case hit == nil:
		m.logger.DebugContext(ctx, "cache miss", "user_id", req.UserID, "session_type", string(req.SessionType))
		m.instruments.RecordCacheLookup(ctx, "miss")
		return nil, false
	default:
		m.logger.DebugContext(ctx, "cache hit", "entry_id", hit.Entry.ID, "similarity", hit.Similarity)
		m.instruments.RecordCacheLookup(ctx, "hit")
		return hit, true
	}
}

func (m *Manager) lookup(ctx context.Context, req *triad.OrchestrationRequest) (hit *Hit, err error) {
	defer func() {
		if r := recover(); r != nil {
			hit, err = nil, fmt.Errorf("cache lookup panic: %v", r)
		}
	}()
	if m.store == nil || m.embedder == nil {
		return nil, errors.New("cache not configured")
	}
	if req == nil {
		return nil, errors.New("nil request")
	}

	query, err := m.embedder.Embed(ctx, m.input(req))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates, err := m.store.Candidates(ctx, Filter{
		UserID:          req.UserID,
		PersonalityType: req.PersonalityType,
		SessionType:     req.SessionType,
		Limit:           m.config.CandidateLimit,
	})
	if err != nil {
		return nil, err
	}

	cutoff := m.now().Add(-m.config.MaxAge)
	scored := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		if m.config.MaxAge > 0 && c.CreatedAt.Before(cutoff) {
			continue
		}
		scored = append(scored, Hit{Entry: c, Similarity: CosineSimilarity(query, c.Embedding)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > m.config.TopN {
		scored = scored[:m.config.TopN]
	}

	var best *Hit
	for i := range scored {
		h := &scored[i]
		if m.config.MinSimilarity > 0 && h.Similarity < m.config.MinSimilarity {
			continue
		}
		if best == nil || h.Entry.CreatedAt.After(best.Entry.CreatedAt) {
			best = h
		}
	}
	return best, nil
}

// Write stores the coordinated response of result for future lookups. The
// error is returned for callers that care; it has already been logged.
func (m *Manager) Write(ctx context.Context, req *triad.OrchestrationRequest, result *triad.OrchestrationResult) error {
	if m == nil {
		return errors.New("cache not configured")
	}
	err := m.write(ctx, req, result)
	if err != nil {
		m.logger.WarnContext(ctx, "cache write failed", "error", err)
		m.instruments.RecordCacheWrite(ctx, "error")
		return err
	}
	m.instruments.RecordCacheWrite(ctx, "ok")
	return nil
}

func (m *Manager) write(ctx context.Context, req *triad.OrchestrationRequest, result *triad.OrchestrationResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache write panic: %v", r)
		}
	}()
	if m.store == nil || m.embedder == nil {
		return errors.New("cache not configured")
	}
	if req == nil || result == nil {
		return errors.New("nothing to cache")
	}

	input := m.input(req)
	embedding, err := m.embedder.Embed(ctx, input+" -> "+result.Coordinated.Guidance)
	if err != nil {
		return fmt.Errorf("embed entry: %w", err)
	}
	return m.store.Add(ctx, Entry{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		PersonalityType: req.PersonalityType,
		SessionType:     req.SessionType,
		Input:           input,
		Embedding:       embedding,
		Response:        result.Coordinated,
		Confidence:      result.Coordinated.Confidence,
		CreatedAt:       m.now(),
	})
}

func (m *Manager) input(req *triad.OrchestrationRequest) string {
	if m.redactor == nil {
		return req.Input
	}
	return m.redactor.Redact(req.Input)
}
