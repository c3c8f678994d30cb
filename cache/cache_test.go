package cache

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scttfrdmn/triadkit-go/safety"
	"github.com/scttfrdmn/triadkit-go/triad"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

// stubEmbedder maps known texts to fixed vectors and everything else to
// the unit x axis.
type stubEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (s *stubEmbedder) Dimension() int { return 2 }

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0}, nil
}

type failingStore struct{}

func (failingStore) Add(context.Context, Entry) error { return errors.New("store down") }
func (failingStore) Candidates(context.Context, Filter) ([]Entry, error) {
	return nil, errors.New("store down")
}

type panickingStore struct{}

func (panickingStore) Add(context.Context, Entry) error { panic("store corrupted") }
func (panickingStore) Candidates(context.Context, Filter) ([]Entry, error) {
	panic("store corrupted")
}

func testRequest() *triad.OrchestrationRequest {
	return &triad.OrchestrationRequest{
		UserID:          "u1",
		PersonalityType: triad.INFJ,
		SessionType:     triad.SessionWellness,
		Input:           "how do I rest",
	}
}

func entry(id string, age time.Duration, embedding []float64) Entry {
	return Entry{
		ID:              id,
		UserID:          "u1",
		PersonalityType: triad.INFJ,
		SessionType:     triad.SessionWellness,
		Embedding:       embedding,
		Response:        triad.CoordinatedResponse{Guidance: id},
		CreatedAt:       epoch.Add(-age),
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0)
	if e.Dimension() != DefaultHashDimension {
		t.Errorf("Expected default dimension %d, got %d", DefaultHashDimension, e.Dimension())
	}

	a, err := e.Embed(context.Background(), "I feel tired at work")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, _ := e.Embed(context.Background(), "i feel TIRED at work!")
	c, _ := e.Embed(context.Background(), "planning a birthday party")

	if len(a) != DefaultHashDimension {
		t.Fatalf("Expected %d values, got %d", DefaultHashDimension, len(a))
	}
	if sim := CosineSimilarity(a, b); math.Abs(sim-1) > 1e-9 {
		t.Errorf("Case and punctuation should not matter, similarity %f", sim)
	}
	if CosineSimilarity(a, c) >= CosineSimilarity(a, b) {
		t.Error("Unrelated text should be less similar")
	}

	empty, _ := e.Embed(context.Background(), "")
	if CosineSimilarity(a, empty) != 0 {
		t.Error("Empty text should embed to the zero vector")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2}, []float64{1, 2}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestMemoryStoreCandidates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Add(ctx, entry("old", 2*time.Hour, nil))
	_ = s.Add(ctx, entry("new", time.Hour, nil))
	other := entry("other-user", 0, nil)
	other.UserID = "u2"
	_ = s.Add(ctx, other)

	got, err := s.Candidates(ctx, Filter{UserID: "u1", PersonalityType: triad.INFJ, SessionType: triad.SessionWellness})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "new" {
		t.Errorf("Expected newest first, got %s", got[0].ID)
	}

	limited, _ := s.Candidates(ctx, Filter{UserID: "u1", PersonalityType: triad.INFJ, SessionType: triad.SessionWellness, Limit: 1})
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(limited))
	}
	if s.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", s.Len())
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "", time.Hour)
	defer s.Close()
	ctx := context.Background()

	if err := s.Add(ctx, entry("first", 2*time.Minute, []float64{1, 0})); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(ctx, entry("second", time.Minute, []float64{0, 1})); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	key := "triad:cache:u1:INFJ:wellness"
	if !mr.Exists(key) {
		t.Fatalf("Expected key %s", key)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("Expected TTL 1h, got %v", ttl)
	}

	got, err := s.Candidates(ctx, Filter{UserID: "u1", PersonalityType: triad.INFJ, SessionType: triad.SessionWellness})
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "second" || got[1].ID != "first" {
		t.Fatalf("Expected [second first], got %+v", got)
	}
	if got[0].Embedding[1] != 1 || got[0].Response.Guidance != "second" {
		t.Error("Entry should round-trip through JSON")
	}

	// Malformed members are skipped.
	mr.ZAdd(key, float64(epoch.UnixMilli()), "not json")
	got, _ = s.Candidates(ctx, Filter{UserID: "u1", PersonalityType: triad.INFJ, SessionType: triad.SessionWellness})
	if len(got) != 2 {
		t.Errorf("Expected malformed member to be skipped, got %d entries", len(got))
	}

	mr.FastForward(2 * time.Hour)
	got, _ = s.Candidates(ctx, Filter{UserID: "u1", PersonalityType: triad.INFJ, SessionType: triad.SessionWellness})
	if len(got) != 0 {
		t.Errorf("Expected key to expire, got %d entries", len(got))
	}
}

func TestRedisStoreFromURL(t *testing.T) {
	if _, err := NewRedisStoreFromURL("::not a url", "", 0); err == nil {
		t.Error("Expected error for invalid URL")
	}
	mr := miniredis.RunT(t)
	s, err := NewRedisStoreFromURL("redis://"+mr.Addr(), "custom", 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer s.Close()
	if err := s.Add(context.Background(), entry("x", 0, nil)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !mr.Exists("custom:u1:INFJ:wellness") {
		t.Error("Expected custom key prefix")
	}
}

func TestLookupReturnsMostRecentOfTopN(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	// Query embeds to (1,0). "close-old" and "close-new" are very similar;
	// "far-newest" is the newest but orthogonal.
	_ = store.Add(ctx, entry("close-old", 3*time.Hour, []float64{1, 0.1}))
	_ = store.Add(ctx, entry("close-new", 2*time.Hour, []float64{1, 0.2}))
	_ = store.Add(ctx, entry("far-newest", time.Hour, []float64{0, 1}))

	clock := &fixedClock{t: epoch}
	cfg := DefaultConfig()
	cfg.TopN = 2
	m := NewManager(store, &stubEmbedder{}, cfg, WithNow(clock.now))

	hit, ok := m.Lookup(ctx, testRequest())
	if !ok {
		t.Fatal("Expected a hit")
	}
	if hit.Entry.ID != "close-new" {
		t.Errorf("Expected close-new, got %s", hit.Entry.ID)
	}
	if hit.Similarity < 0.9 {
		t.Errorf("Expected high similarity, got %f", hit.Similarity)
	}
}

func TestLookupIgnoresStaleEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Add(ctx, entry("stale", 25*time.Hour, []float64{1, 0}))

	clock := &fixedClock{t: epoch}
	m := NewManager(store, &stubEmbedder{}, DefaultConfig(), WithNow(clock.now))

	if _, ok := m.Lookup(ctx, testRequest()); ok {
		t.Error("Entries older than 24h should never be returned")
	}

	_ = store.Add(ctx, entry("fresh", 23*time.Hour, []float64{0, 1}))
	hit, ok := m.Lookup(ctx, testRequest())
	if !ok || hit.Entry.ID != "fresh" {
		t.Errorf("Expected the fresh entry, got %+v", hit)
	}
}

func TestLookupMinSimilarity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Add(ctx, entry("orthogonal", time.Hour, []float64{0, 1}))

	cfg := DefaultConfig()
	cfg.MinSimilarity = 0.5
	clock := &fixedClock{t: epoch}
	m := NewManager(store, &stubEmbedder{}, cfg, WithNow(clock.now))

	if _, ok := m.Lookup(ctx, testRequest()); ok {
		t.Error("Candidates below MinSimilarity should be dropped")
	}
}

func TestLookupFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		manager *Manager
	}{
		{"store error", NewManager(failingStore{}, &stubEmbedder{}, DefaultConfig())},
		{"embed error", NewManager(NewMemoryStore(), &stubEmbedder{err: errors.New("no model")}, DefaultConfig())},
		{"no store", NewManager(nil, &stubEmbedder{}, DefaultConfig())},
		{"nil manager", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hit, ok := tt.manager.Lookup(ctx, testRequest()); ok || hit != nil {
				t.Error("Failures should be reported as a miss")
			}
		})
	}
}

func TestWriteThenLookup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := &fixedClock{t: epoch}
	m := NewManager(store, NewHashEmbedder(64), DefaultConfig(), WithNow(clock.now))
	req := testRequest()

	result := &triad.OrchestrationResult{
		Coordinated: triad.CoordinatedResponse{
			Guidance:        "Take a slow evening walk.",
			SynthesisMethod: triad.MethodIntegration,
			Confidence:      0.9,
		},
	}
	if err := m.Write(ctx, req, result); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, _ := store.Candidates(ctx, Filter{UserID: "u1", PersonalityType: triad.INFJ, SessionType: triad.SessionWellness})
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "" || !e.CreatedAt.Equal(epoch) || e.Confidence != 0.9 || e.Input != req.Input {
		t.Errorf("Unexpected entry: %+v", e)
	}

	hit, ok := m.Lookup(ctx, req)
	if !ok {
		t.Fatal("Expected the written entry to be found")
	}
	if hit.Entry.Response.Guidance != "Take a slow evening walk." {
		t.Errorf("Unexpected cached guidance %q", hit.Entry.Response.Guidance)
	}

	other := testRequest()
	other.SessionType = triad.SessionCoaching
	if _, ok := m.Lookup(ctx, other); ok {
		t.Error("Lookups must match the session type exactly")
	}
}

func TestWriteFailureIsReported(t *testing.T) {
	m := NewManager(failingStore{}, NewHashEmbedder(8), DefaultConfig())
	if err := m.Write(context.Background(), testRequest(), &triad.OrchestrationResult{}); err == nil {
		t.Error("Expected the store error")
	}
	if err := m.Write(context.Background(), testRequest(), nil); err == nil {
		t.Error("Expected an error for a nil result")
	}
}

func TestWriteRedactsInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, NewHashEmbedder(64), DefaultConfig(), WithRedactor(safety.NewRedactor()))
	req := testRequest()
	req.Input = "email me at ana@example.com about rest"

	result := &triad.OrchestrationResult{Coordinated: triad.CoordinatedResponse{Guidance: "Rest."}}
	if err := m.Write(ctx, req, result); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, _ := store.Candidates(ctx, Filter{UserID: "u1", PersonalityType: triad.INFJ, SessionType: triad.SessionWellness})
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Input != "email me at [EMAIL] about rest" {
		t.Errorf("Expected a redacted input, got %q", entries[0].Input)
	}
	if _, ok := m.Lookup(ctx, req); !ok {
		t.Error("The unredacted request should still find its entry")
	}
}

func TestStorePanicsAreFailures(t *testing.T) {
	m := NewManager(panickingStore{}, NewHashEmbedder(8), DefaultConfig())

	if hit, ok := m.Lookup(context.Background(), testRequest()); ok || hit != nil {
		t.Error("A panicking store should produce a miss")
	}
	err := m.Write(context.Background(), testRequest(), &triad.OrchestrationResult{})
	if err == nil || !strings.Contains(err.Error(), "store corrupted") {
		t.Errorf("Expected the panic reported as an error, got %v", err)
	}
}
