package service

import (
	"context"
	"time"

	"hudson/internal/ratelimit/models"
)

// Store is a fixed-window counter store.
type Store interface {
	// Increment admits one request for key and returns the updated window.
	// A denied request must not move the counter.
	Increment(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)

	// Peek returns the window for key without consuming quota.
	Peek(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)

	// Reset clears the counter for key.
	Reset(ctx context.Context, key string) error
}
