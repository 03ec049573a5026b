// Package requesttime stamps each request with the instant it arrived.
// Window stores read that instant through requestcontext.Now, so a
// decision and the headers describing it agree.
package requesttime

import (
	"net/http"
	"time"

	"hudson/pkg/requestcontext"
)

// Middleware stamps requests with the wall clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(nil)(next)
}

// WithClock stamps requests with now(). A nil now uses time.Now; tests
// pass a manual clock to move windows forward without sleeping.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
