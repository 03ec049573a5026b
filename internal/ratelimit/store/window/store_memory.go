// Package window holds fixed-window counter stores for the rate limiter.
package window

import (
	"context"
	"sync"
	"time"

	"hudson/internal/ratelimit/models"
	"hudson/pkg/requestcontext"
)

// InMemory implements the fixed-window counter over a mutex-guarded map.
// Expiry is checked on every access; Sweep only reclaims memory.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]*models.LimitEntry
}

func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[string]*models.LimitEntry),
	}
}

// Increment admits one request for key. A missing or expired window starts
// fresh at count 1. Inside a live window the count grows only while it is
// below limit; a denied call leaves the count untouched.
func (s *InMemory) Increment(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.Expired(now) {
		entry = models.NewLimitEntry(now, window)
		s.entries[key] = entry
		return allowed(entry, limit), nil
	}

	if entry.Count < limit {
		entry.Count++
		return allowed(entry, limit), nil
	}

	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    entry.ResetAt,
		RetryAfter: models.RetryAfterSeconds(now, entry.ResetAt),
	}, nil
}

// Peek reports the state of key without consuming quota. An expired entry
// is deleted and reported as a fresh window starting now.
func (s *InMemory) Peek(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && entry.Expired(now) {
		delete(s.entries, key)
		ok = false
	}
	if !ok {
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   now.Add(window),
		}, nil
	}

	remaining := max(0, limit-entry.Count)
	res := &models.RateLimitResult{
		Allowed:   remaining > 0,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   entry.ResetAt,
	}
	if remaining == 0 {
		res.RetryAfter = models.RetryAfterSeconds(now, entry.ResetAt)
	}
	return res, nil
}

// Reset clears the counter for a key.
func (s *InMemory) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep deletes every expired entry and returns how many it removed.
func (s *InMemory) Sweep(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of physically stored entries, expired or not.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func allowed(entry *models.LimitEntry, limit int) *models.RateLimitResult {
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: max(0, limit-entry.Count),
		ResetAt:   entry.ResetAt,
	}
}
