package middleware

import (
	"net/http"

	internal_errors "github.com/teofly/gallery-api/internal/errors"
	"github.com/teofly/gallery-api/internal/middleware/ratelimiter"
	"github.com/teofly/gallery-api/internal/utils"
)

// RateLimit counts every request against the identity's window and rejects
// once the budget is spent. Mounted in front of the login handler, so the
// counter ticks before any credential verification happens.
func RateLimit(rl ratelimiter.Limiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteError(w, err)
				return
			}

			allowed, err := rl.Allow(r.Context(), identity)
			if err != nil {
				utils.WriteError(w, err)
				return
			}
			if !allowed {
				utils.WriteError(w, &internal_errors.ErrorWithStatusCode{
					Message:    "Too many login attempts, please try again later.",
					StatusCode: http.StatusTooManyRequests,
					Code:       internal_errors.CodeRateLimitExceeded,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ByIP keys the rate limit window on the client network address.
func ByIP(r *http.Request) (string, error) {
	return utils.GetIP(r)
}
