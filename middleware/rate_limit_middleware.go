package middleware

import (
	"context"
	"encoding/json"

	"golang.org/x/time/rate"

	"dipc/rpcerr"
)

// RateLimitMiddleware builds a token-bucket rate limiter shared across every
// call dispatched through it, admitting r calls/sec with the given burst.
// A rejected call fails as InternalError — the wire error taxonomy has no
// dedicated rate-limit code.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params json.RawMessage) (any, error) {
			if !limiter.Allow() {
				return nil, rpcerr.New(rpcerr.InternalError, "rate_limit_exceeded")
			}
			return next(ctx, params)
		}
	}
}
