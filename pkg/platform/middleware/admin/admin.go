package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "hudson/pkg/domain-errors"
	"hudson/pkg/platform/httputil"
	"hudson/pkg/platform/privacy"
	"hudson/pkg/requestcontext"
)

// HeaderToken carries the shared admin secret.
const HeaderToken = "X-Admin-Token"

// HeaderActor optionally names the operator for log attribution.
const HeaderActor = "X-Admin-Actor-ID"

type contextKeyAdminActorID struct{}

// GetAdminActorID returns the operator name set by RequireAdminToken, or "".
func GetAdminActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(contextKeyAdminActorID{}).(string); ok {
		return actorID
	}
	return ""
}

// WithAdminActorID stores an operator name, mostly for handler tests.
func WithAdminActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, contextKeyAdminActorID{}, actorID)
}

// RequireAdminToken gates admin routes behind a shared secret. An empty
// expected token disables the routes: every request gets 404 so the
// surface is not advertised.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if expectedToken == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
				return
			}

			token := r.Header.Get(HeaderToken)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin_token_mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			if actorID := r.Header.Get(HeaderActor); actorID != "" {
				ctx = WithAdminActorID(ctx, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
