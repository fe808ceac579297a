package middleware

import (
	"time"

	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/method"
)

// Logging records the method name, duration, and any handler error
// for each dispatched call, writing through the zap-backed logger.
func Logging() Middleware {
	return func(methodName string, next method.Handler) method.Handler {
		return func(ctx *method.Context, params []any) error {
			start := time.Now()
			err := next(ctx, params)
			l := logging.WithTrace(ctx.TraceID)
			if err != nil {
				l.Errorw("method call failed", "method", methodName, "duration", time.Since(start), "err", err)
			} else {
				l.Debugw("method call completed", "method", methodName, "duration", time.Since(start))
			}
			return err
		}
	}
}
