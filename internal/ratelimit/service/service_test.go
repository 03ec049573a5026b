package service

//go:generate mockgen -source=interfaces.go -destination=mocks/store_mock.go -package=mocks Store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"hudson/internal/ratelimit/config"
	"hudson/internal/ratelimit/metrics"
	"hudson/internal/ratelimit/models"
	"hudson/internal/ratelimit/service/mocks"
	"hudson/internal/ratelimit/store/window"
	dErrors "hudson/pkg/domain-errors"
	"hudson/pkg/platform/circuit"
	"hudson/pkg/testutil"
)

// =============================================================================
// Rate limit Service Test Suite
// =============================================================================
// Justification for unit tests: the service owns limit resolution, key
// construction and the degradation path (breaker, fallback, fail-open). The
// window arithmetic is covered by the store contract suite; here the real
// in-memory store is used so the fixed-window properties are checked end to
// end through the public API.

type ServiceSuite struct {
	suite.Suite
	clock   *testutil.Clock
	store   *window.InMemory
	logs    *bytes.Buffer
	logger  *slog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = testutil.NewClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	s.store = window.NewInMemory()
	s.logs = &bytes.Buffer{}
	s.logger = slog.New(slog.NewJSONHandler(s.logs, nil))
	s.reg = prometheus.NewRegistry()
	s.metrics = metrics.New(s.reg)

	var err error
	s.service, err = New(config.DefaultConfig(), s.store,
		WithLogger(s.logger),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) ctx() context.Context {
	return s.clock.Context(context.Background())
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil config returns error", func() {
		_, err := New(nil, s.store)
		s.ErrorContains(err, "config is required")
	})

	s.Run("nil store returns error", func() {
		_, err := New(config.DefaultConfig(), nil)
		s.ErrorContains(err, "window store is required")
	})
}

// =============================================================================
// Fixed window behaviour
// =============================================================================

func (s *ServiceSuite) TestContactFormScenario() {
	cfg := config.DefaultConfig().With(models.LimitContactForm, models.Limit{MaxRequests: 3, Window: 60 * time.Second})
	svc, err := New(cfg, s.store, WithLogger(s.logger))
	s.Require().NoError(err)
	ip := "203.0.113.1"

	for i := 1; i <= 3; i++ {
		s.True(svc.CheckLimit(s.ctx(), ip, models.LimitContactForm), "call %d", i)
	}
	s.False(svc.CheckLimit(s.ctx(), ip, models.LimitContactForm), "call 4")

	s.clock.Advance(60001 * time.Millisecond)
	s.True(svc.CheckLimit(s.ctx(), ip, models.LimitContactForm), "call 5")
}

func (s *ServiceSuite) TestTypeIsolation() {
	ip := "198.51.100.20"
	for range 100 {
		s.Require().True(s.service.CheckLimit(s.ctx(), ip, models.LimitDefault))
	}
	s.False(s.service.CheckLimit(s.ctx(), ip, models.LimitDefault))

	for i := 1; i <= 3; i++ {
		s.True(s.service.CheckLimit(s.ctx(), ip, models.LimitNewsletter), "newsletter call %d", i)
		s.True(s.service.CheckLimit(s.ctx(), ip, models.LimitContactForm), "contact call %d", i)
	}
	s.False(s.service.CheckLimit(s.ctx(), ip, models.LimitNewsletter))
}

func (s *ServiceSuite) TestBlockedCallsKeepRemainingAtZero() {
	ip := "198.51.100.21"
	for range 3 {
		s.service.CheckLimit(s.ctx(), ip, models.LimitNewsletter)
	}

	for range 20 {
		s.False(s.service.CheckLimit(s.ctx(), ip, models.LimitNewsletter))
		info := s.service.GetLimitInfo(s.ctx(), ip, models.LimitNewsletter)
		s.Equal(0, info.Remaining)
		s.True(info.IsLimited)
	}
}

func (s *ServiceSuite) TestGetLimitInfo() {
	ip := "198.51.100.22"

	s.Run("fresh identifier has the full quota", func() {
		info := s.service.GetLimitInfo(s.ctx(), ip, models.LimitContactForm)
		s.Equal(3, info.Remaining)
		s.False(info.IsLimited)
		s.Equal(s.clock.Now().Add(time.Minute), info.ResetTime)
	})

	s.Run("reports the window without consuming it", func() {
		s.service.CheckLimit(s.ctx(), ip, models.LimitContactForm)
		start := s.clock.Now()
		s.clock.Advance(10 * time.Second)

		for range 5 {
			info := s.service.GetLimitInfo(s.ctx(), ip, models.LimitContactForm)
			s.Equal(2, info.Remaining)
			s.Equal(start.Add(time.Minute), info.ResetTime)
		}
	})

	s.Run("expired window reads fresh without a check", func() {
		s.service.CheckLimit(s.ctx(), ip, models.LimitContactForm)
		s.service.CheckLimit(s.ctx(), ip, models.LimitContactForm)
		s.True(s.service.GetLimitInfo(s.ctx(), ip, models.LimitContactForm).IsLimited)

		s.clock.Advance(time.Minute)
		info := s.service.GetLimitInfo(s.ctx(), ip, models.LimitContactForm)
		s.Equal(3, info.Remaining)
		s.False(info.IsLimited)
	})
}

func (s *ServiceSuite) TestCheckReturnsHeaderState() {
	res := s.service.Check(s.ctx(), "198.51.100.23", models.LimitAPI)
	s.True(res.Allowed)
	s.Equal(60, res.Limit)
	s.Equal(59, res.Remaining)
	s.False(res.Degraded)
	s.Equal(s.clock.Now().Add(time.Minute), res.ResetAt)
}

func (s *ServiceSuite) TestUnknownLimitTypeUsesDefault() {
	ip := "198.51.100.24"
	s.service.CheckLimit(s.ctx(), ip, models.LimitType("signup"))

	info := s.service.GetLimitInfo(s.ctx(), ip, models.LimitDefault)
	s.Equal(99, info.Remaining, "unregistered names share the default bucket")
}

func (s *ServiceSuite) TestEmptyIdentifierSharesUnknownBucket() {
	s.service.CheckLimit(s.ctx(), "", models.LimitContactForm)
	s.service.CheckLimit(s.ctx(), models.UnknownIdentifier, models.LimitContactForm)

	info := s.service.GetLimitInfo(s.ctx(), "", models.LimitContactForm)
	s.Equal(1, info.Remaining)
}

func (s *ServiceSuite) TestDenialIsLoggedAnonymised() {
	ip := "203.0.113.99"
	for range 4 {
		s.service.CheckLimit(s.ctx(), ip, models.LimitContactForm)
	}

	out := s.logs.String()
	s.Contains(out, `"msg":"rate_limit_exceeded"`)
	s.Contains(out, "203.0.113.0")
	s.NotContains(out, ip)
	s.Equal(3.0, promtest.ToFloat64(s.metrics.ChecksTotal.WithLabelValues("contactForm", "allowed")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ChecksTotal.WithLabelValues("contactForm", "denied")))
}

func (s *ServiceSuite) TestReset() {
	ip := "198.51.100.25"
	for range 3 {
		s.service.CheckLimit(s.ctx(), ip, models.LimitNewsletter)
	}
	s.False(s.service.CheckLimit(s.ctx(), ip, models.LimitNewsletter))

	s.Require().NoError(s.service.Reset(s.ctx(), ip, models.LimitNewsletter))
	s.True(s.service.CheckLimit(s.ctx(), ip, models.LimitNewsletter))
}

// =============================================================================
// Degradation Tests (store failures)
// =============================================================================
// Justification: store outages must never block traffic. These paths are
// only reachable with a failing store, so they use a mocked primary.

type DegradationSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	primary  *mocks.MockStore
	fallback *window.InMemory
	clock    *testutil.Clock
	logs     *bytes.Buffer
	reg      *prometheus.Registry
	metrics  *metrics.Metrics
}

func TestDegradationSuite(t *testing.T) {
	suite.Run(t, new(DegradationSuite))
}

func (s *DegradationSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.primary = mocks.NewMockStore(s.ctrl)
	s.fallback = window.NewInMemory()
	s.clock = testutil.NewClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	s.logs = &bytes.Buffer{}
	s.reg = prometheus.NewRegistry()
	s.metrics = metrics.New(s.reg)
}

func (s *DegradationSuite) ctx() context.Context {
	return s.clock.Context(context.Background())
}

func (s *DegradationSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
		WithMetrics(s.metrics),
		WithBreaker(circuit.New("test",
			circuit.WithFailureThreshold(2),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(time.Minute),
			circuit.WithClock(s.clock.Now),
		)),
	}
	svc, err := New(config.DefaultConfig(), s.primary, append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

var errRedisDown = errors.New("dial tcp 10.0.0.5:6379: connect: connection refused")

func (s *DegradationSuite) TestFailsOpenWithoutFallback() {
	svc := s.newService()
	s.primary.EXPECT().Increment(gomock.Any(), "rl:198.51.100.30:contactForm", 3, time.Minute).
		Return(nil, errRedisDown)

	res := svc.Check(s.ctx(), "198.51.100.30", models.LimitContactForm)

	s.True(res.Allowed)
	s.True(res.Degraded)
	s.Equal(3, res.Remaining)
	s.Equal(3, res.Limit)
	s.Contains(s.logs.String(), "rate_limit_store_degraded")
	s.Equal(1.0, promtest.ToFloat64(s.metrics.StoreErrorsTotal.WithLabelValues("increment")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.DegradedTotal.WithLabelValues("contactForm", "fail_open")))
}

func (s *DegradationSuite) TestGetLimitInfoFailsOpen() {
	svc := s.newService()
	s.primary.EXPECT().Peek(gomock.Any(), gomock.Any(), 60, time.Minute).Return(nil, errRedisDown)

	info := svc.GetLimitInfo(s.ctx(), "198.51.100.31", models.LimitAPI)
	s.Equal(60, info.Remaining)
	s.False(info.IsLimited)
}

func (s *DegradationSuite) TestFallbackAnswersWhilePrimaryFails() {
	svc := s.newService(WithFallback(s.fallback))
	s.primary.EXPECT().Increment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errRedisDown).Times(2)

	first := svc.Check(s.ctx(), "198.51.100.32", models.LimitContactForm)
	s.True(first.Allowed)
	s.True(first.Degraded)
	s.Equal(2, first.Remaining, "fallback counts the request")

	// Circuit is open after the second failure; primary is skipped.
	for range 3 {
		svc.Check(s.ctx(), "198.51.100.32", models.LimitContactForm)
	}
	res := svc.Check(s.ctx(), "198.51.100.32", models.LimitContactForm)
	s.False(res.Allowed, "the fallback still enforces the limit")
	s.True(res.Degraded)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.CircuitOpen))
	s.Contains(s.logs.String(), "rate_limit_circuit_opened")
}

func (s *DegradationSuite) TestCircuitClosesAfterSuccessfulProbe() {
	svc := s.newService(WithFallback(s.fallback))
	recovered := &models.RateLimitResult{Allowed: true, Limit: 60, Remaining: 42, ResetAt: s.clock.Now().Add(time.Minute)}

	gomock.InOrder(
		s.primary.EXPECT().Increment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errRedisDown).Times(2),
		s.primary.EXPECT().Increment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(recovered, nil),
	)

	svc.Check(s.ctx(), "198.51.100.33", models.LimitAPI)
	svc.Check(s.ctx(), "198.51.100.33", models.LimitAPI)
	s.True(svc.Check(s.ctx(), "198.51.100.33", models.LimitAPI).Degraded, "cooldown not elapsed")

	s.clock.Advance(time.Minute)
	res := svc.Check(s.ctx(), "198.51.100.33", models.LimitAPI)
	s.False(res.Degraded)
	s.Equal(42, res.Remaining)
	s.Equal(0.0, promtest.ToFloat64(s.metrics.CircuitOpen))
	s.Contains(s.logs.String(), "rate_limit_circuit_closed")
}

func (s *DegradationSuite) TestResetPropagatesPrimaryError() {
	svc := s.newService(WithFallback(s.fallback))
	s.primary.EXPECT().Reset(gomock.Any(), "rl:198.51.100.34:api").Return(errRedisDown)

	err := svc.Reset(s.ctx(), "198.51.100.34", models.LimitAPI)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.ErrorIs(err, errRedisDown)
}

func (s *DegradationSuite) TestResetClearsFallbackToo() {
	svc := s.newService(WithFallback(s.fallback))
	key := models.NewRateLimitKey("198.51.100.35", models.LimitAPI).String()
	_, err := s.fallback.Increment(s.ctx(), key, 60, time.Minute)
	s.Require().NoError(err)
	s.primary.EXPECT().Reset(gomock.Any(), key).Return(nil)

	s.Require().NoError(svc.Reset(s.ctx(), "198.51.100.35", models.LimitAPI))
	s.Zero(s.fallback.Len())
}
