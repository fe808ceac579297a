package middleware

import (
	"context"
	"time"

	"github.com/kcls/opensrf-go/internal/osrferr"
)

// TimeOutMiddleware enforces a maximum duration for each gateway call.
// If the handler doesn't complete within the timeout, it returns an
// error immediately.
//
// The handler goroutine is NOT cancelled — it continues running in the
// background. The timeout only controls when the caller gives up
// waiting; next must itself check ctx.Done() to actually abandon a
// slow bus round-trip.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *Response, 1) // buffered: avoid leaking the goroutine on timeout
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return &Response{Err: &osrferr.TimeoutError{Msg: "request timed out"}}
			}
		}
	}
}
