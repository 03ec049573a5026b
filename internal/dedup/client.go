package dedup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "hudson/pkg/domain-errors"
)

const (
	DefaultWaitTimeout    = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultRetryDelay     = 500 * time.Millisecond

	// maxResponseBytes caps how much of an upstream body is buffered.
	maxResponseBytes = 1 << 20

	tracerName = "hudson/internal/dedup"
)

// Roles recorded on spans and metrics.
const (
	RoleLeader = "leader"
	RoleWaiter = "waiter"
	RoleBypass = "bypass"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithWaitTimeout bounds how long a waiter blocks on the leading call.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.waitTimeout = d
		}
	}
}

// WithRequestTimeout bounds one upstream execution, retries included.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithRetries sets how many times a failed upstream attempt is retried.
func WithRetries(n uint, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

// Client is a dedup-aware HTTP caller. Concurrent identical requests share
// one upstream execution; the first caller leads and the rest wait for its
// outcome.
type Client struct {
	registry       *Registry
	doer           HTTPDoer
	logger         *slog.Logger
	metrics        *Metrics
	tracer         trace.Tracer
	waitTimeout    time.Duration
	requestTimeout time.Duration
	retries        uint
	retryDelay     time.Duration
}

func NewClient(registry *Registry, doer HTTPDoer, opts ...Option) (*Client, error) {
	if registry == nil {
		return nil, errors.New("dedup registry is required")
	}
	if doer == nil {
		return nil, errors.New("http doer is required")
	}
	c := &Client{
		registry:       registry,
		doer:           doer,
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
		waitTimeout:    DefaultWaitTimeout,
		requestTimeout: DefaultRequestTimeout,
		retryDelay:     DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do executes req, or joins an identical call already in flight. Every
// caller sharing a call receives the same response or the same error.
func (c *Client) Do(ctx context.Context, req *Request) (resp *Response, err error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	ctx, span := c.tracer.Start(ctx, "dedup.Do", trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
	))
	defer span.End()

	role := RoleBypass
	defer func() {
		span.SetAttributes(attribute.String("dedup.role", role))
		if resp != nil {
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.observe(role, err)
	}()

	key, err := KeyFor(req)
	if errors.Is(err, ErrUnkeyable) {
		c.logger.DebugContext(ctx, "dedup_bypass", "reason", "unkeyable")
		return c.execute(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	call, leader := c.registry.Acquire(ctx, key)
	span.SetAttributes(attribute.String("dedup.call_id", call.ID))
	if !leader {
		role = RoleWaiter
		resp, err = c.registry.Wait(ctx, call, c.waitTimeout)
		if errors.Is(err, ErrWaitTimeout) {
			c.logger.WarnContext(ctx, "dedup_wait_timeout",
				"call_id", call.ID,
				"wait_timeout", c.waitTimeout.String(),
			)
		}
		return resp, err
	}

	role = RoleLeader
	return c.lead(call, req)
}

// lead runs the upstream call for a freshly registered call and settles it.
// The call is failed even if execution panics so waiters never hang.
func (c *Client) lead(call *Call, req *Request) (*Response, error) {
	settled := false
	defer func() {
		if settled {
			return
		}
		p := recover()
		call.Fail(dErrors.New(dErrors.CodeInternal, fmt.Sprintf("in-flight request aborted: %v", p)))
		if p != nil {
			panic(p)
		}
	}()

	resp, err := c.execute(call.Context(), req)
	if err != nil {
		call.Fail(err)
	} else {
		call.Complete(resp)
	}
	settled = true

	// A cancel or expiry may have settled the call first; report what
	// the waiters saw.
	return call.Result()
}

// execute performs req against the upstream with timeout and retries.
// Transport errors, 5xx and 429 responses are retried. When retries run
// out on a status error, the last response is the result.
func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := retry.NewWithData[*Response](
		retry.Context(ctx),
		retry.Attempts(c.retries+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.InfoContext(ctx, "dedup_upstream_retry",
				"attempt", n+1,
				"error", err,
			)
			if c.metrics != nil {
				c.metrics.RetriesTotal.Inc()
			}
		}),
	).Do(func() (*Response, error) {
		return c.roundTrip(ctx, req)
	})
	if c.metrics != nil {
		c.metrics.UpstreamSeconds.Observe(time.Since(start).Seconds())
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.resp, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, retry.Unrecoverable(dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid upstream request"))
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = http.Header{}
	}

	httpResp, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &statusError{resp: resp}
	}
	return resp, nil
}

func (c *Client) observe(role string, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestsTotal.WithLabelValues(role).Inc()
	if err != nil {
		c.metrics.FailuresTotal.WithLabelValues(role, string(dErrors.CodeOf(classify(err)))).Inc()
	}
}

// statusError carries a retryable upstream response through retry-go.
type statusError struct {
	resp *Response
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.resp.StatusCode)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return retry.IsRecoverable(err)
}

func classify(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "upstream request timed out")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeCanceled, "upstream request canceled")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "upstream request failed")
	}
}
