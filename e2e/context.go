package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hudson/internal/dedup"
	"hudson/internal/platform/health"
	"hudson/internal/ratelimit/config"
	ratelimitHandler "hudson/internal/ratelimit/handler"
	"hudson/internal/ratelimit/metrics"
	ratelimitMW "hudson/internal/ratelimit/middleware"
	ratelimitService "hudson/internal/ratelimit/service"
	"hudson/internal/ratelimit/store/window"
	submissionHandler "hudson/internal/submission/handler"
	submissionService "hudson/internal/submission/service"
	httptransport "hudson/internal/transport/http"
	"hudson/pkg/platform/middleware/metadata"
	"hudson/pkg/platform/middleware/request"
	"hudson/pkg/testutil"
)

// AdminToken is the admin secret the in-process server is started with.
const AdminToken = "e2e-admin-token-0123456789"

// Webhook stands in for the contact and newsletter relays.
type Webhook struct {
	deliveries atomic.Int32
	status     atomic.Int32

	mu   sync.Mutex
	hold chan struct{}
}

func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.deliveries.Add(1)
	_, _ = io.Copy(io.Discard, r.Body)

	w.mu.Lock()
	hold := w.hold
	w.mu.Unlock()
	if hold != nil {
		<-hold
	}

	status := int(w.status.Load())
	if status == 0 {
		status = http.StatusOK
	}
	rw.WriteHeader(status)
}

// Deliveries is the number of requests the webhook has received.
func (w *Webhook) Deliveries() int {
	return int(w.deliveries.Load())
}

// RespondWith makes every later delivery answer with status.
func (w *Webhook) RespondWith(status int) {
	w.status.Store(int32(status))
}

// Hold blocks deliveries until the returned release func is called.
func (w *Webhook) Hold() (release func()) {
	ch := make(chan struct{})
	w.mu.Lock()
	w.hold = ch
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			w.hold = nil
			w.mu.Unlock()
			close(ch)
		})
	}
}

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	ClientIP         string
	LastResponse     *http.Response
	LastResponseBody []byte
	Statuses         []int

	Webhook  *Webhook
	Registry *dedup.Registry
	Clock    *testutil.Clock

	server  *httptest.Server
	webhook *httptest.Server
}

// NewTestContext starts hudson and a stub webhook in process. Proxy
// headers are trusted so scenarios can choose their client address, and
// requests are stamped from a manual clock so windows can be elapsed.
func NewTestContext() (*TestContext, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	clock := testutil.NewClock(time.Now())
	hook := &Webhook{}
	webhookServer := httptest.NewServer(hook)

	limits := config.DefaultConfig()
	limiter, err := ratelimitService.New(limits, window.NewInMemory(),
		ratelimitService.WithLogger(logger),
		ratelimitService.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		webhookServer.Close()
		return nil, err
	}

	registry := dedup.NewRegistry(dedup.WithRegistryLogger(logger))
	relay, err := dedup.NewClient(registry, webhookServer.Client(),
		dedup.WithLogger(logger),
		dedup.WithMetrics(dedup.NewMetrics(reg)),
		dedup.WithWaitTimeout(5*time.Second),
		dedup.WithRetries(1, 10*time.Millisecond),
	)
	if err != nil {
		webhookServer.Close()
		return nil, err
	}
	submissions, err := submissionService.New(relay, submissionService.Webhooks{
		ContactURL:    webhookServer.URL + "/contact",
		NewsletterURL: webhookServer.URL + "/newsletter",
	}, submissionService.WithLogger(logger))
	if err != nil {
		webhookServer.Close()
		return nil, err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		Metadata:       &metadata.Config{TrustProxyHeaders: true},
		RequestMetrics: request.NewMetrics(reg),
		Gatherer:       reg,
		MaxBodyBytes:   64 << 10,
		RequestTimeout: 10 * time.Second,
		AdminToken:     AdminToken,
		Clock:          clock.Now,
		Limiter:        ratelimitMW.New(limiter, logger),
		RateLimit:      ratelimitHandler.New(limiter, limits, logger),
		Submission:     submissionHandler.New(submissions, logger),
		Health:         health.New("e2e"),
	})
	server := httptest.NewServer(router)

	return &TestContext{
		BaseURL:    server.URL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		ClientIP:   "203.0.113.10",
		Webhook:    hook,
		Registry:   registry,
		Clock:      clock,
		server:     server,
		webhook:    webhookServer,
	}, nil
}

// Close stops both servers.
func (tc *TestContext) Close() {
	tc.server.Close()
	tc.webhook.Close()
}

// POST makes a JSON POST request and stores the response
func (tc *TestContext) POST(path string, body any) error {
	return tc.POSTWithHeaders(path, body, nil)
}

// POSTWithHeaders makes a JSON POST request with optional headers
func (tc *TestContext) POSTWithHeaders(path string, body any, headers map[string]string) error {
	status, respBody, resp, err := tc.send(http.MethodPost, path, body, headers)
	if err != nil {
		return err
	}
	tc.record(status, respBody, resp)
	return nil
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	status, respBody, resp, err := tc.send(http.MethodGet, path, nil, headers)
	if err != nil {
		return err
	}
	tc.record(status, respBody, resp)
	return nil
}

// POSTConcurrently sends the same JSON POST n times at once and records
// every status in Statuses, in completion order.
func (tc *TestContext) POSTConcurrently(path string, body any, n int) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	tc.Statuses = nil
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, respBody, resp, err := tc.send(http.MethodPost, path, body, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			tc.Statuses = append(tc.Statuses, status)
			tc.LastResponse, tc.LastResponseBody = resp, respBody
		}()
	}
	close(start)
	wg.Wait()
	return firstErr
}

// AwaitWaiters blocks until the pending outbound call for key has n
// callers waiting on its leader.
func (tc *TestContext) AwaitWaiters(key dedup.Key, n int) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if call, ok := tc.Registry.IsDuplicate(key); ok && call.Waiters() >= n {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("no pending call with %d waiters", n)
}

func (tc *TestContext) send(method, path string, body any, headers map[string]string) (int, []byte, *http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", tc.ClientIP)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, resp, nil
}

func (tc *TestContext) record(status int, body []byte, resp *http.Response) {
	tc.LastResponse = resp
	tc.LastResponseBody = body
	tc.Statuses = append(tc.Statuses, status)
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}

	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	return strings.Contains(string(tc.LastResponseBody), text)
}

// Getter methods for step package interfaces

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

func (tc *TestContext) GetStatuses() []int {
	return tc.Statuses
}

func (tc *TestContext) ResetStatuses() {
	tc.Statuses = nil
}

func (tc *TestContext) SetClientIP(ip string) {
	tc.ClientIP = ip
}

func (tc *TestContext) WebhookDeliveries() int {
	return tc.Webhook.Deliveries()
}

func (tc *TestContext) WebhookRespondWith(status int) {
	tc.Webhook.RespondWith(status)
}

func (tc *TestContext) HoldWebhook() func() {
	return tc.Webhook.Hold()
}

func (tc *TestContext) AdvanceClock(d time.Duration) {
	tc.Clock.Advance(d)
}

func (tc *TestContext) GetAdminToken() string {
	return AdminToken
}

func (tc *TestContext) GetWebhookURL() string {
	return tc.webhook.URL
}
