package middleware

import (
	"strings"
	"time"

	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/method"
)

// Retry re-invokes the handler with exponential backoff when it fails
// with a transient-looking error (a timeout or a connection refusal
// reaching a downstream resource). Only methods the
// application marks safe for at-least-once retry should be wrapped
// with this: a handler that emits partial results before failing will
// emit them twice on retry.
func Retry(maxRetries int, baseDelay time.Duration) Middleware {
	return func(methodName string, next method.Handler) method.Handler {
		return func(ctx *method.Context, params []any) error {
			err := next(ctx, params)
			for i := 0; i < maxRetries; i++ {
				if err == nil {
					return nil
				}
				if !strings.Contains(err.Error(), "timeout") && !strings.Contains(err.Error(), "connection refused") {
					return err
				}
				logging.WithTrace(ctx.TraceID).Warnw("retrying method call", "method", methodName, "attempt", i+1, "err", err)
				time.Sleep(baseDelay * (1 << i))
				err = next(ctx, params)
			}
			return err
		}
	}
}
