package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"hudson/internal/ratelimit/models"
	"hudson/pkg/platform/httputil"
	"hudson/pkg/platform/middleware/metadata"
	"hudson/pkg/requestcontext"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderStatus    = "X-RateLimit-Status"
)

type RateLimiter interface {
	Check(ctx context.Context, identifier string, limitType models.LimitType) *models.RateLimitResult
}

// IdentifierFunc derives the rate limit identifier for a request.
type IdentifierFunc func(r *http.Request) string

// ClientIP identifies a request by the address resolved by the metadata
// middleware.
func ClientIP(r *http.Request) string {
	return metadata.GetClientIP(r.Context())
}

// ClientIPAndRoute identifies a request by client address and path, so one
// limit type applied to several routes keeps a bucket per route.
func ClientIPAndRoute(r *http.Request) string {
	return metadata.GetClientIP(r.Context()) + "|" + r.URL.Path
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	return &Middleware{
		limiter: limiter,
		logger:  logger,
	}
}

// RateLimit admits requests per client IP under limitType.
func (m *Middleware) RateLimit(limitType models.LimitType) func(http.Handler) http.Handler {
	return m.RateLimitBy(limitType, ClientIP)
}

// RateLimitBy admits requests under limitType keyed by identify.
func (m *Middleware) RateLimitBy(limitType models.LimitType, identify IdentifierFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := m.limiter.Check(r.Context(), identify(r), limitType)

			// Add headers regardless of outcome
			addRateLimitHeaders(w, result)

			if result != nil && result.Degraded {
				ctx := r.Context()
				m.logger.WarnContext(ctx, "rate_limit_degraded_response",
					"limit_type", string(limitType),
					"path", r.URL.Path,
					"allowed", result.Allowed,
					"request_id", requestcontext.RequestID(ctx),
				)
			}

			if !result.Allowed {
				httputil.WriteRateLimited(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	h := w.Header()
	h.Set(HeaderLimit, strconv.Itoa(result.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(result.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		h.Set(HeaderStatus, "degraded")
	}
}
