// Package httptransport assembles the public HTTP surface: the global
// middleware stack, rate limited form endpoints, health and admin routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hudson/internal/platform/health"
	ratelimitHandler "hudson/internal/ratelimit/handler"
	ratelimitMW "hudson/internal/ratelimit/middleware"
	"hudson/internal/ratelimit/models"
	submissionHandler "hudson/internal/submission/handler"
	"hudson/pkg/platform/middleware/admin"
	"hudson/pkg/platform/middleware/metadata"
	"hudson/pkg/platform/middleware/request"
	"hudson/pkg/platform/middleware/requesttime"
)

// Deps are the handlers and settings the router mounts. Nil handlers leave
// their routes out.
type Deps struct {
	Logger         *slog.Logger
	Metadata       *metadata.Config
	RequestMetrics *request.Metrics
	Gatherer       prometheus.Gatherer

	MaxBodyBytes   int64
	RequestTimeout time.Duration
	AdminToken     string

	// Clock stamps each request; nil means the wall clock.
	Clock func() time.Time

	Limiter    *ratelimitMW.Middleware
	RateLimit  *ratelimitHandler.Handler
	Submission *submissionHandler.Handler
	Health     *health.Handler
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(metadata.NewMiddleware(d.Metadata).Handler)
	r.Use(requesttime.WithClock(d.Clock))
	r.Use(request.Logger(d.Logger))
	r.Use(request.Latency(d.RequestMetrics))
	if d.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(d.MaxBodyBytes))
	}

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(request.Timeout(d.RequestTimeout))
		}
		r.Use(chimw.AllowContentType("application/json", "application/x-www-form-urlencoded"))

		if d.Submission != nil {
			r.With(d.Limiter.RateLimit(models.LimitContactFormAPI)).Post("/api/contact", d.Submission.HandleContact)
			r.With(d.Limiter.RateLimit(models.LimitContactForm)).Post("/contact", d.Submission.HandleContact)
			r.With(d.Limiter.RateLimit(models.LimitNewsletter)).Post("/api/newsletter", d.Submission.HandleNewsletter)
		}

		if d.RateLimit != nil {
			r.Group(func(r chi.Router) {
				r.Use(d.Limiter.RateLimit(models.LimitReadOnlyAPI))
				d.RateLimit.Register(r)
			})

			// Admin routes answer 404 when no token is configured.
			r.Group(func(r chi.Router) {
				r.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
				r.Use(d.Limiter.RateLimit(models.LimitAPI))
				d.RateLimit.RegisterAdmin(r)
			})
		}
	})

	return r
}
