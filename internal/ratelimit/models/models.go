package models

import (
	"time"

	dErrors "hudson/pkg/domain-errors"
)

// LimitType names a rate limit configuration. Each type keeps its own
// counter per identifier.
type LimitType string

const (
	// LimitDefault applies to every request (100 per 15 min).
	LimitDefault LimitType = "default"
	// LimitAPI applies to the /api group (60 per min).
	LimitAPI LimitType = "api"
	// LimitContactForm guards the form-encoded /contact fallback (3 per min).
	LimitContactForm LimitType = "contactForm"
	// LimitContactFormAPI guards POST /api/contact (5 per 15 min).
	LimitContactFormAPI LimitType = "contactFormApi"
	// LimitNewsletter guards POST /api/newsletter (3 per hour).
	LimitNewsletter LimitType = "newsletter"
	// LimitReadOnlyAPI guards read endpoints such as quota lookups (200 per min).
	LimitReadOnlyAPI LimitType = "readOnlyApi"
)

// AllLimitTypes lists the registered types in a stable order.
var AllLimitTypes = []LimitType{
	LimitDefault,
	LimitAPI,
	LimitContactForm,
	LimitContactFormAPI,
	LimitNewsletter,
	LimitReadOnlyAPI,
}

func (t LimitType) IsValid() bool {
	switch t {
	case LimitDefault, LimitAPI, LimitContactForm, LimitContactFormAPI, LimitNewsletter, LimitReadOnlyAPI:
		return true
	}
	return false
}

func (t LimitType) String() string {
	return string(t)
}

// ParseLimitType validates a limit type taken from a URL or request body.
func ParseLimitType(s string) (LimitType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "limit type cannot be empty")
	}
	t := LimitType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown limit type: "+s)
	}
	return t, nil
}

// Limit is an immutable fixed-window configuration.
type Limit struct {
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
}

// Validate enforces positive values.
func (l Limit) Validate() error {
	if l.MaxRequests <= 0 {
		return dErrors.New(dErrors.CodeValidation, "max_requests must be positive")
	}
	if l.Window <= 0 {
		return dErrors.New(dErrors.CodeValidation, "window must be positive")
	}
	return nil
}

// LimitEntry is the counter state of one (identifier, limit type) window.
// An entry is logically absent once now >= ResetAt.
type LimitEntry struct {
	Count       int
	WindowStart time.Time
	ResetAt     time.Time
}

// NewLimitEntry opens a window at now holding one request.
func NewLimitEntry(now time.Time, window time.Duration) *LimitEntry {
	return &LimitEntry{Count: 1, WindowStart: now, ResetAt: now.Add(window)}
}

// Expired reports whether the window has elapsed. The boundary is
// exclusive: at exactly WindowStart+window the entry is expired.
func (e *LimitEntry) Expired(now time.Time) bool {
	return !now.Before(e.ResetAt)
}

type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded is set when the answer did not come from the primary store.
	Degraded bool `json:"degraded,omitempty"`
}

// Info converts a result into the read-only view.
func (r *RateLimitResult) Info() LimitInfo {
	return LimitInfo{
		Remaining: r.Remaining,
		ResetTime: r.ResetAt,
		IsLimited: r.Remaining == 0,
	}
}

// LimitInfo is the read-only quota view of one identifier and limit type.
type LimitInfo struct {
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
	IsLimited bool      `json:"is_limited"`
}

// RetryAfterSeconds rounds the time until resetAt up to whole seconds,
// with a floor of one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
