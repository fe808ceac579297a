package middleware

import (
	"fmt"
	"time"

	"github.com/kcls/opensrf-go/internal/method"
)

// Timeout enforces a maximum duration for a method call, racing the
// handler goroutine against a timer of length d. The handler goroutine is
// not cancelled on expiry — it keeps running in the background, and
// any Emit calls it makes after the timeout are simply directed at a
// session the client has already given up on.
func Timeout(d time.Duration) Middleware {
	return func(methodName string, next method.Handler) method.Handler {
		return func(ctx *method.Context, params []any) error {
			done := make(chan error, 1)
			go func() {
				done <- next(ctx, params)
			}()

			select {
			case err := <-done:
				return err
			case <-time.After(d):
				return fmt.Errorf("method %s timed out after %s", methodName, d)
			}
		}
	}
}
