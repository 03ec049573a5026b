// Package service decides rate limit admission over a primary window store,
// falling back to a local store (or failing open) when the primary errors.
package service

import (
	"context"
	"errors"
	"log/slog"

	"hudson/internal/ratelimit/config"
	"hudson/internal/ratelimit/metrics"
	"hudson/internal/ratelimit/models"
	dErrors "hudson/pkg/domain-errors"
	"hudson/pkg/platform/circuit"
	"hudson/pkg/platform/privacy"
	"hudson/pkg/requestcontext"
)

type Service struct {
	config   *config.Config
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFallback sets the store that answers while the primary is failing.
func WithFallback(store Store) Option {
	return func(s *Service) {
		s.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		if b != nil {
			s.breaker = b
		}
	}
}

func New(cfg *config.Config, primary Store, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("rate limit config is required")
	}
	if primary == nil {
		return nil, errors.New("window store is required")
	}

	svc := &Service{
		config:  cfg,
		primary: primary,
		breaker: circuit.New("ratelimit"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckLimit consumes one request from the identifier's window and reports
// whether it may proceed.
func (s *Service) CheckLimit(ctx context.Context, identifier string, limitType models.LimitType) bool {
	return s.Check(ctx, identifier, limitType).Allowed
}

// Check is CheckLimit with the full window state, for response headers.
// It never fails: store errors degrade to the fallback or fail open.
func (s *Service) Check(ctx context.Context, identifier string, limitType models.LimitType) *models.RateLimitResult {
	lt, limit := s.config.Resolve(limitType)
	key := models.NewRateLimitKey(identifier, lt).String()

	res := s.run(ctx, "increment", lt, limit, func(st Store) (*models.RateLimitResult, error) {
		return st.Increment(ctx, key, limit.MaxRequests, limit.Window)
	})

	if s.metrics != nil {
		s.metrics.IncrementChecks(lt.String(), res.Allowed)
	}
	if !res.Allowed {
		s.logger.InfoContext(ctx, "rate_limit_exceeded",
			"identifier", privacy.AnonymizeIdentifier(identifier),
			"limit_type", lt,
			"limit", limit.MaxRequests,
			"window_seconds", int(limit.Window.Seconds()),
			"retry_after", res.RetryAfter,
		)
	}
	return res
}

// GetLimitInfo reports the identifier's remaining quota without consuming
// any. An elapsed window reads as fresh.
func (s *Service) GetLimitInfo(ctx context.Context, identifier string, limitType models.LimitType) models.LimitInfo {
	lt, limit := s.config.Resolve(limitType)
	key := models.NewRateLimitKey(identifier, lt).String()

	res := s.run(ctx, "peek", lt, limit, func(st Store) (*models.RateLimitResult, error) {
		return st.Peek(ctx, key, limit.MaxRequests, limit.Window)
	})
	return res.Info()
}

// Reset clears the identifier's window in every store.
func (s *Service) Reset(ctx context.Context, identifier string, limitType models.LimitType) error {
	lt, _ := s.config.Resolve(limitType)
	key := models.NewRateLimitKey(identifier, lt).String()

	if s.fallback != nil {
		if err := s.fallback.Reset(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "rate_limit_fallback_reset_failed", "error", err)
		}
	}
	if err := s.primary.Reset(ctx, key); err != nil {
		s.recordStoreError(ctx, "reset", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to reset rate limit")
	}

	s.logger.InfoContext(ctx, "rate_limit_reset",
		"identifier", privacy.AnonymizeIdentifier(identifier),
		"limit_type", lt,
	)
	return nil
}

// run executes op against the primary store while the breaker allows it.
// A primary error is answered from the fallback store, and without one the
// call fails open.
func (s *Service) run(ctx context.Context, op string, lt models.LimitType, limit models.Limit, fn func(Store) (*models.RateLimitResult, error)) *models.RateLimitResult {
	if s.breaker.Allow() {
		res, err := fn(s.primary)
		if err == nil {
			usePrimary, change := s.breaker.RecordSuccess()
			if change.Closed {
				s.logger.InfoContext(ctx, "rate_limit_circuit_closed", "breaker", s.breaker.Name())
				s.setCircuit(false)
			}
			if usePrimary {
				return res
			}
		} else {
			s.recordStoreError(ctx, op, err)
		}
	}

	if s.fallback != nil {
		res, err := fn(s.fallback)
		if err == nil {
			res.Degraded = true
			s.recordDegraded(lt, "fallback")
			return res
		}
		s.logger.ErrorContext(ctx, "rate_limit_fallback_failed", "op", op, "error", err)
	}

	s.recordDegraded(lt, "fail_open")
	return failOpen(ctx, limit)
}

func (s *Service) recordStoreError(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "rate_limit_store_degraded",
		"op", op,
		"breaker_state", s.breaker.State().String(),
		"error", err,
	)
	if s.metrics != nil {
		s.metrics.IncrementStoreErrors(op)
	}
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.ErrorContext(ctx, "rate_limit_circuit_opened", "breaker", s.breaker.Name())
		s.setCircuit(true)
	}
}

func (s *Service) recordDegraded(lt models.LimitType, mode string) {
	if s.metrics != nil {
		s.metrics.IncrementDegraded(lt.String(), mode)
	}
}

func (s *Service) setCircuit(open bool) {
	if s.metrics != nil {
		s.metrics.SetCircuitOpen(open)
	}
}

func failOpen(ctx context.Context, limit models.Limit) *models.RateLimitResult {
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit.MaxRequests,
		Remaining: limit.MaxRequests,
		ResetAt:   requestcontext.Now(ctx).Add(limit.Window),
		Degraded:  true,
	}
}
