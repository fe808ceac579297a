package middleware

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kcls/opensrf-go/internal/method"
)

// RateLimit bounds the rate of method invocations using a token
// bucket, built once in the outer closure and shared across every
// call the returned Middleware wraps.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(methodName string, next method.Handler) method.Handler {
		return func(ctx *method.Context, params []any) error {
			if !limiter.Allow() {
				return fmt.Errorf("method %s: rate limit exceeded", methodName)
			}
			return next(ctx, params)
		}
	}
}
