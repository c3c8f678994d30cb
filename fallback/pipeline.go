// Package fallback produces coordinated responses without a reasoning
// backend, from per-personality templates and a small per-user pipeline
// record.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scttfrdmn/triadkit-go/triad"
)

// ErrPipelineNotFound is returned by PipelineStore.Get for unknown keys.
var ErrPipelineNotFound = errors.New("pipeline not found")

// Pipeline tracks how a user's personality profile has been served offline.
type Pipeline struct {
	UserID             string                `json:"user_id"`
	PersonalityType    triad.PersonalityType `json:"personality_type"`
	Archetype          string                `json:"archetype"`
	CognitiveFunctions [4]string             `json:"cognitive_functions"`
	UsageCount         int                   `json:"usage_count"`
	SuccessRate        float64               `json:"success_rate"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// RecordOutcome bumps the usage count and folds the outcome into the
// running success rate.
func (p *Pipeline) RecordOutcome(success bool, at time.Time) {
	p.UsageCount++
	v := 0.0
	if success {
		v = 1
	}
	p.SuccessRate += (v - p.SuccessRate) / float64(p.UsageCount)
	p.UpdatedAt = at
}

// PipelineStore persists pipeline records keyed by user and personality.
type PipelineStore interface {
	// Get returns ErrPipelineNotFound when no record exists.
	Get(ctx context.Context, userID string, tag triad.PersonalityType) (*Pipeline, error)
	Put(ctx context.Context, p *Pipeline) error
}

func pipelineKey(userID string, tag triad.PersonalityType) string {
	return userID + ":" + string(tag)
}

// MemoryPipelineStore is an in-process PipelineStore.
type MemoryPipelineStore struct {
	mu      sync.RWMutex
	records map[string]Pipeline
}

// NewMemoryPipelineStore creates an empty store.
func NewMemoryPipelineStore() *MemoryPipelineStore {
	return &MemoryPipelineStore{records: make(map[string]Pipeline)}
}

// Get returns a copy of the stored record.
func (s *MemoryPipelineStore) Get(ctx context.Context, userID string, tag triad.PersonalityType) (*Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[pipelineKey(userID, tag)]
	if !ok {
		return nil, ErrPipelineNotFound
	}
	return &p, nil
}

// Put stores a copy of p.
func (s *MemoryPipelineStore) Put(ctx context.Context, p *Pipeline) error {
	if p == nil {
		return errors.New("nil pipeline")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[pipelineKey(p.UserID, p.PersonalityType)] = *p
	return nil
}

// DefaultPipelinePrefix prefixes Redis pipeline keys.
const DefaultPipelinePrefix = "triad:pipeline"

// RedisPipelineStore keeps one JSON value per pipeline under
// "{prefix}:{user_id}:{personality}".
type RedisPipelineStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisPipelineStore creates a store over client. ttl of 0 keeps records
// forever.
func NewRedisPipelineStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisPipelineStore {
	if keyPrefix == "" {
		keyPrefix = DefaultPipelinePrefix
	}
	return &RedisPipelineStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisPipelineStore) key(userID string, tag triad.PersonalityType) string {
	return r.keyPrefix + ":" + pipelineKey(userID, tag)
}

// Get loads a pipeline record.
func (r *RedisPipelineStore) Get(ctx context.Context, userID string, tag triad.PersonalityType) (*Pipeline, error) {
	data, err := r.client.Get(ctx, r.key(userID, tag)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPipelineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	var p Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline: %w", err)
	}
	return &p, nil
}

// Put stores a pipeline record.
func (r *RedisPipelineStore) Put(ctx context.Context, p *Pipeline) error {
	if p == nil {
		return errors.New("nil pipeline")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}
	if err := r.client.Set(ctx, r.key(p.UserID, p.PersonalityType), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pipeline: %w", err)
	}
	return nil
}
