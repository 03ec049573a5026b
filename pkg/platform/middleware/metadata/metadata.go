package metadata

import (
	"context"
	"net/http"
	"net/netip"
	"strings"

	strutil "hudson/pkg/platform/strings"
	"hudson/pkg/requestcontext"
)

// MaxXFFHeaderLength is the maximum allowed length for X-Forwarded-For header
// to prevent header injection attacks.
const MaxXFFHeaderLength = 500

// LoopbackPlaceholder is the client IP used when neither proxy headers nor
// the connection address yield one. All such callers share a bucket.
const LoopbackPlaceholder = "127.0.0.1"

// Config holds configuration for the metadata middleware.
type Config struct {
	// TrustedProxies is a list of IP prefixes (CIDR notation) that are trusted
	// to set X-Forwarded-For headers.
	TrustedProxies []netip.Prefix

	// TrustProxyHeaders trusts X-Forwarded-For / X-Real-IP from any peer.
	// Only enable when the service is reachable exclusively through a proxy
	// that overwrites these headers (e.g. the hosting platform's edge).
	TrustProxyHeaders bool
}

// DefaultConfig returns a Config with no trusted proxies (secure by default).
func DefaultConfig() *Config {
	return &Config{}
}

// Middleware handles client metadata extraction with configurable trusted proxies.
type Middleware struct {
	config *Config
}

// NewMiddleware creates a new metadata middleware with the given config.
func NewMiddleware(cfg *Config) *Middleware {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Middleware{config: cfg}
}

// Handler extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.extractClientIP(r)
		userAgent := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, userAgent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractClientIP resolves the client IP: first X-Forwarded-For entry, then
// X-Real-IP (both only from trusted peers), then RemoteAddr, then the
// loopback placeholder.
func (m *Middleware) extractClientIP(r *http.Request) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	trusted := m.config.TrustProxyHeaders || m.isTrustedProxy(remoteIP)

	if trusted {
		if ip := firstForwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && len(xri) <= MaxXFFHeaderLength {
			if _, err := netip.ParseAddr(xri); err == nil {
				return xri
			}
		}
	}

	if remoteIP == "" {
		return LoopbackPlaceholder
	}
	return remoteIP
}

// firstForwardedFor returns the first (original client) entry of an
// X-Forwarded-For chain, or "" when absent, oversized or not an IP.
func firstForwardedFor(xff string) string {
	if xff == "" || len(xff) > MaxXFFHeaderLength {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	first = strings.TrimSpace(first)
	if _, err := netip.ParseAddr(first); err != nil {
		return ""
	}
	return first
}

// isTrustedProxy checks if the given IP is in the trusted proxy list.
func (m *Middleware) isTrustedProxy(ip string) bool {
	if len(m.config.TrustedProxies) == 0 || ip == "" {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	for _, prefix := range m.config.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr extracts the IP from RemoteAddr (strips port).
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}

	// Handle IPv6 with brackets: [::1]:port
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[1:idx]
		}
		return strings.Trim(strings.Split(remoteAddr, "]:")[0], "[]")
	}

	// Handle IPv4: 127.0.0.1:port
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}

	return remoteAddr
}

// ParseTrustedProxies parses a comma separated CIDR list. Invalid entries
// are skipped and returned so callers can log them. Repeats are collapsed.
func ParseTrustedProxies(raw string) (prefixes []netip.Prefix, invalid []string) {
	for _, part := range strutil.SplitList(raw) {
		prefix, err := netip.ParsePrefix(part)
		if err != nil {
			invalid = append(invalid, part)
			continue
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, invalid
}

// WithClientMetadata stores client metadata in the context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	return requestcontext.WithClientMetadata(ctx, clientIP, userAgent)
}

// GetClientIP returns the client IP stored by Handler.
func GetClientIP(ctx context.Context) string {
	return requestcontext.ClientIP(ctx)
}

// GetUserAgent returns the User-Agent stored by Handler.
func GetUserAgent(ctx context.Context) string {
	return requestcontext.UserAgent(ctx)
}
