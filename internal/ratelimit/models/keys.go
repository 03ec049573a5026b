package models

import (
	"fmt"
	"strings"
)

// KeyPrefix is the namespace of all rate limit keys.
const KeyPrefix = "rl"

// UnknownIdentifier replaces an empty identifier. Every such caller shares
// one bucket.
const UnknownIdentifier = "unknown"

// RateLimitKey is a value object encapsulating rate limit bucket key construction.
// It centralizes key format and sanitization to prevent key collision attacks.
type RateLimitKey struct {
	identifier string
	limitType  LimitType
}

// NewRateLimitKey builds the key for one identifier under one limit type.
func NewRateLimitKey(identifier string, limitType LimitType) RateLimitKey {
	if identifier == "" {
		identifier = UnknownIdentifier
	}
	return RateLimitKey{
		identifier: sanitizeKeySegment(identifier),
		limitType:  limitType,
	}
}

// String returns the formatted key for storage lookup.
func (k RateLimitKey) String() string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, k.identifier, sanitizeKeySegment(string(k.limitType)))
}

// LimitType returns the limit type the key belongs to.
func (k RateLimitKey) LimitType() LimitType {
	return k.limitType
}

// sanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets. IPv6 client addresses
// contain colons, so this runs on every real identifier.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// Examples:
//   - "2001:db8::1"  → "2001_cdb8_c_c1"
//   - "user_admin"   → "user__admin"
//   - "user_:admin"  → "user___cadmin"
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
