package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hudson/internal/ratelimit/config"
	"hudson/internal/ratelimit/models"
	"hudson/internal/ratelimit/service"
	"hudson/internal/ratelimit/store/window"
	"hudson/pkg/platform/middleware/metadata"
	"hudson/pkg/requestcontext"
)

// =============================================================================
// Rate Limit Middleware Test Suite
// =============================================================================
// Justification: the middleware is the only place the limiter result becomes
// HTTP. Headers and the 429 body are client-facing contracts.

type MiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
	now    time.Time
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
}

type stubLimiter struct {
	result      *models.RateLimitResult
	identifiers []string
}

func (l *stubLimiter) Check(_ context.Context, identifier string, _ models.LimitType) *models.RateLimitResult {
	l.identifiers = append(l.identifiers, identifier)
	return l.result
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (s *MiddlewareSuite) request(ip, path string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	ctx := metadata.WithClientMetadata(req.Context(), ip, "test-agent")
	ctx = requestcontext.WithTime(ctx, s.now)
	return req.WithContext(ctx)
}

func (s *MiddlewareSuite) TestContactFormLimitOverHTTP() {
	svc, err := service.New(config.DefaultConfig(), window.NewInMemory(), service.WithLogger(s.logger))
	s.Require().NoError(err)
	handler := New(svc, s.logger).RateLimit(models.LimitContactForm)(okHandler())

	for i := 1; i <= 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, s.request("203.0.113.1", "/api/contact"))
		s.Equal(http.StatusOK, rec.Code, "call %d", i)
		s.Equal("3", rec.Header().Get(HeaderLimit))
		s.Equal(strconv.Itoa(3-i), rec.Header().Get(HeaderRemaining))
		s.Equal(strconv.FormatInt(s.now.Add(time.Minute).Unix(), 10), rec.Header().Get(HeaderReset))
		s.Empty(rec.Header().Get(HeaderStatus))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, s.request("203.0.113.1", "/api/contact"))
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("60", rec.Header().Get("Retry-After"))
	s.Equal("0", rec.Header().Get(HeaderRemaining))

	var body map[string]any
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal("rate_limit_exceeded", body["error"])
	s.Contains(body["message"], "try again later")
	s.Equal(float64(60), body["retry_after"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, s.request("203.0.113.2", "/api/contact"))
	s.Equal(http.StatusOK, rec.Code, "other clients are unaffected")
}

func (s *MiddlewareSuite) TestDegradedResultSetsStatusHeader() {
	limiter := &stubLimiter{result: &models.RateLimitResult{
		Allowed: true, Limit: 60, Remaining: 60, ResetAt: s.now.Add(time.Minute), Degraded: true,
	}}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := New(limiter, logger).RateLimit(models.LimitAPI)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, s.request("198.51.100.1", "/api/anything"))

	s.Equal(http.StatusOK, rec.Code, "fail-open lets the request through")
	s.Equal("degraded", rec.Header().Get(HeaderStatus))
	s.Contains(logs.String(), `"msg":"rate_limit_degraded_response"`)
	s.Contains(logs.String(), `"limit_type":"api"`)
}

func (s *MiddlewareSuite) TestHealthyResultIsNotLogged() {
	limiter := &stubLimiter{result: &models.RateLimitResult{
		Allowed: true, Limit: 60, Remaining: 59, ResetAt: s.now.Add(time.Minute),
	}}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := New(limiter, logger).RateLimit(models.LimitAPI)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), s.request("198.51.100.1", "/api/anything"))

	s.Empty(logs.String())
}

func (s *MiddlewareSuite) TestIdentifierFuncs() {
	limiter := &stubLimiter{result: &models.RateLimitResult{Allowed: true, Limit: 1, Remaining: 1}}
	mw := New(limiter, s.logger)

	mw.RateLimit(models.LimitAPI)(okHandler()).ServeHTTP(httptest.NewRecorder(), s.request("198.51.100.2", "/api/a"))
	mw.RateLimitBy(models.LimitAPI, ClientIPAndRoute)(okHandler()).ServeHTTP(httptest.NewRecorder(), s.request("198.51.100.2", "/api/b"))

	s.Equal([]string{"198.51.100.2", "198.51.100.2|/api/b"}, limiter.identifiers)
}
