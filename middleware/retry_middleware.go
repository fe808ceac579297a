package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/osrferr"
)

// RetryMiddleware retries a gateway call with exponential backoff when
// the underlying bus round-trip timed out or the connection was
// refused — both transient, retry-worthy failure modes. Any other
// error (bad request, method not found, application-level error) is
// returned immediately.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			resp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if resp.Err == nil || !retryable(resp.Err) {
					return resp
				}
				logging.Logger().Warnw("retrying gateway request",
					"service", req.Service, "method", req.Method, "attempt", i+1, "err", resp.Err)
				time.Sleep(baseDelay * time.Duration(1<<i))
				resp = next(ctx, req)
			}
			return resp
		}
	}
}

func retryable(err error) bool {
	var timeout *osrferr.TimeoutError
	var busIO *osrferr.BusIOError
	return errors.As(err, &timeout) || errors.As(err, &busIO)
}
