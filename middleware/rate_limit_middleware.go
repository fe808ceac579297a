package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/kcls/opensrf-go/internal/osrferr"
)

// RateLimitMiddleware creates a rate limiter using the token bucket
// algorithm, generalizing "new connections when pool is saturated are
// refused" to per-call admission control at the gateway.
//
// Tokens are added at rate r per second, up to a burst size. Each
// request consumes one token; if the bucket is empty, the request is
// rejected without reaching the handler.
//
// The limiter is created in the OUTER closure (once per middleware
// construction), not inside the inner handler — otherwise every
// request would get a fresh full bucket.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			if !limiter.Allow() {
				return &Response{Err: &osrferr.NotAllowedError{Msg: "rate limit exceeded"}}
			}
			return next(ctx, req)
		}
	}
}
