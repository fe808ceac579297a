package middleware

import (
	"context"
	"time"

	"github.com/kcls/opensrf-go/internal/logging"
)

// LoggingMiddleware records the service/method, duration, and any
// error for each gateway call. It captures the start time before
// calling next, and logs the elapsed time after next returns.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			start := time.Now()

			resp := next(ctx, req)

			duration := time.Since(start)
			if resp.Err != nil {
				logging.Logger().Warnw("gateway request failed",
					"service", req.Service, "method", req.Method, "duration", duration, "err", resp.Err)
			} else {
				logging.Logger().Infow("gateway request",
					"service", req.Service, "method", req.Method, "duration", duration)
			}
			return resp
		}
	}
}
