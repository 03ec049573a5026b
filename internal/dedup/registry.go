package dedup

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hudson/pkg/requestcontext"
)

// DefaultMaxAge bounds how long a call may stay pending before Sweep fails it.
const DefaultMaxAge = 5 * time.Minute

// Status is the lifecycle state of a Call.
type Status int

const (
	StatusPending Status = iota
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Response is the buffered result of an outbound call. Non-2xx responses
// are results, not errors.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
		Body:       append([]byte(nil), r.Body...),
	}
}

// Call is one in-flight logical request. The leader settles it exactly once;
// settling closes Done and wakes every waiter.
type Call struct {
	ID      string
	Key     Key
	Started time.Time

	ctx    context.Context
	cancel context.CancelFunc
	reg    *Registry

	waiters atomic.Int32

	once   sync.Once
	done   chan struct{}
	status Status
	resp   *Response
	err    error
}

// Context is canceled when the call is canceled, expires, or settles.
// The leader performs its work under it.
func (c *Call) Context() context.Context {
	return c.ctx
}

// Done is closed once the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Status returns the current state.
func (c *Call) Status() Status {
	select {
	case <-c.done:
		return c.status
	default:
		return StatusPending
	}
}

// Waiters returns how many callers are blocked in Wait on this call.
func (c *Call) Waiters() int {
	return int(c.waiters.Load())
}

// Result returns the settled outcome. Each caller gets its own copy of the
// response. It must only be called after Done is closed.
func (c *Call) Result() (*Response, error) {
	return c.resp.clone(), c.err
}

// Complete settles the call with a response.
func (c *Call) Complete(resp *Response) {
	c.reg.settle(c, resp, nil)
}

// Fail settles the call with an error that every waiter will receive.
func (c *Call) Fail(err error) {
	c.reg.settle(c, nil, err)
}

func (c *Call) finish(resp *Response, err error) bool {
	settled := false
	c.once.Do(func() {
		c.resp, c.err = resp, err
		c.status = StatusCompleted
		if err != nil {
			c.status = StatusFailed
		}
		close(c.done)
		c.cancel()
		settled = true
	})
	return settled
}

type RegistryOption func(*Registry)

func WithMaxAge(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.maxAge = d
		}
	}
}

func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry tracks pending calls by key. At most one pending call exists
// per key; settled calls are removed at once, so a later identical request
// starts a fresh call rather than reading a cached result.
type Registry struct {
	mu     sync.Mutex
	calls  map[Key]*Call
	maxAge time.Duration
	logger *slog.Logger
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		calls:  make(map[Key]*Call),
		maxAge: DefaultMaxAge,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsDuplicate returns the pending call for key, if any. A settled call
// found under key is dropped and reported as absent.
func (r *Registry) IsDuplicate(key Key) (*Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingLocked(key)
}

// Register creates a pending call for key. The caller becomes the leader
// and must settle it. ErrInFlight is returned when key is already pending.
func (r *Registry) Register(ctx context.Context, key Key) (*Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pendingLocked(key); ok {
		return nil, ErrInFlight
	}
	return r.newCallLocked(ctx, key), nil
}

// Acquire returns the pending call for key, registering one if there is
// none. leader is true for the caller that created it.
func (r *Registry) Acquire(ctx context.Context, key Key) (call *Call, leader bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.pendingLocked(key); ok {
		return c, false
	}
	return r.newCallLocked(ctx, key), true
}

// Complete settles the pending call for key with resp. It reports whether
// a call was settled.
func (r *Registry) Complete(key Key, resp *Response) bool {
	c, ok := r.IsDuplicate(key)
	if !ok {
		return false
	}
	return r.settle(c, resp, nil)
}

// Fail settles the pending call for key with err.
func (r *Registry) Fail(key Key, err error) bool {
	c, ok := r.IsDuplicate(key)
	if !ok {
		return false
	}
	return r.settle(c, nil, err)
}

// Cancel aborts the pending call for key. The leader's context is canceled
// and every waiter receives ErrCanceled.
func (r *Registry) Cancel(key Key) bool {
	c, ok := r.IsDuplicate(key)
	if !ok {
		return false
	}
	return r.settle(c, nil, ErrCanceled)
}

// Wait blocks until call settles, timeout elapses or ctx is done. A
// non-positive timeout waits without a deadline of its own.
func (r *Registry) Wait(ctx context.Context, call *Call, timeout time.Duration) (*Response, error) {
	call.waiters.Add(1)
	defer call.waiters.Add(-1)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-call.done:
		return call.Result()
	case <-expired:
		return nil, ErrWaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Sweep fails and removes every call older than the max age.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)

	r.mu.Lock()
	var stale []*Call
	for key, c := range r.calls {
		if c.Status() != StatusPending {
			delete(r.calls, key)
			continue
		}
		if now.Sub(c.Started) >= r.maxAge {
			delete(r.calls, key)
			stale = append(stale, c)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.finish(nil, ErrExpired)
		r.logger.WarnContext(ctx, "dedup_call_expired",
			"call_id", c.ID,
			"age", now.Sub(c.Started).String(),
		)
	}
	return len(stale), nil
}

// Len returns the number of tracked calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *Registry) pendingLocked(key Key) (*Call, bool) {
	c, ok := r.calls[key]
	if !ok {
		return nil, false
	}
	if c.Status() != StatusPending {
		delete(r.calls, key)
		return nil, false
	}
	return c, true
}

func (r *Registry) newCallLocked(ctx context.Context, key Key) *Call {
	callCtx, cancel := context.WithCancel(ctx)
	c := &Call{
		ID:      uuid.NewString(),
		Key:     key,
		Started: requestcontext.Now(ctx),
		ctx:     callCtx,
		cancel:  cancel,
		reg:     r,
		done:    make(chan struct{}),
	}
	r.calls[key] = c
	return c
}

// settle finishes c and drops it from the map if it still owns its key.
func (r *Registry) settle(c *Call, resp *Response, err error) bool {
	if !c.finish(resp, err) {
		return false
	}
	r.mu.Lock()
	if r.calls[c.Key] == c {
		delete(r.calls, c.Key)
	}
	r.mu.Unlock()
	return true
}
