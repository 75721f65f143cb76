package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
)

// RateLimitByIP limits requests per client IP.
func RateLimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return passthrough
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

// RateLimitByUser limits requests per authenticated user, falling back to
// the client IP for anonymous requests. It must run after AuthMiddleware.
func RateLimitByUser(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return passthrough
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(KeyByActor),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

// KeyByActor keys a request by the authenticated user's ID.
func KeyByActor(r *http.Request) (string, error) {
	if user, ok := domain.ActorFromContext(r.Context()); ok {
		return "user:" + user.ID, nil
	}
	return httprate.KeyByIP(r)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func passthrough(next http.Handler) http.Handler {
	return next
}
