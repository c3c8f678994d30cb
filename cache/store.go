// Package cache stores coordinated responses keyed by user, personality tag
// and session type, and finds similar past responses for offline reuse.
//
// Entries are append-only. Expiry is passive: lookups ignore entries older
// than the configured maximum age, and the Redis store can additionally set
// a key TTL.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scttfrdmn/triadkit-go/triad"
)

// Entry is one cached coordinated response.
type Entry struct {
	ID              string                    `json:"id"`
	UserID          string                    `json:"user_id"`
	PersonalityType triad.PersonalityType     `json:"personality_type"`
	SessionType     triad.SessionType         `json:"session_type"`
	Input           string                    `json:"input"`
	Embedding       []float64                 `json:"embedding"`
	Response        triad.CoordinatedResponse `json:"response"`
	Confidence      float64                   `json:"confidence"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// Filter selects candidate entries by exact user, tag and session.
type Filter struct {
	UserID          string
	PersonalityType triad.PersonalityType
	SessionType     triad.SessionType
	// Limit bounds the number of candidates; 0 means DefaultCandidateLimit.
	Limit int
}

// DefaultCandidateLimit bounds candidate fetches.
const DefaultCandidateLimit = 50

func (f Filter) key() string {
	return fmt.Sprintf("%s:%s:%s", f.UserID, f.PersonalityType, f.SessionType)
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultCandidateLimit
	}
	return f.Limit
}

func filterFor(e Entry) Filter {
	return Filter{UserID: e.UserID, PersonalityType: e.PersonalityType, SessionType: e.SessionType}
}

// Store persists cache entries.
type Store interface {
	// Add appends an entry.
	Add(ctx context.Context, entry Entry) error

	// Candidates returns entries matching the filter, newest first.
	Candidates(ctx context.Context, filter Filter) ([]Entry, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry)}
}

// Add appends an entry.
func (s *MemoryStore) Add(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := filterFor(entry).key()
	s.entries[key] = append(s.entries[key], entry)
	return nil
}

// Candidates returns matching entries, newest first.
func (s *MemoryStore) Candidates(ctx context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[filter.key()]
	limit := filter.limit()
	out := make([]Entry, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// Len returns the total number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		n += len(e)
	}
	return n
}
