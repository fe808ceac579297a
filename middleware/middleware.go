// Package middleware implements the onion model admission-control chain
// wrapped around the HTTP-JSON gateway's core request handler. The
// gateway applies logging, timeout, and retry to every call before it
// reaches the bus; RateLimitMiddleware is available but not part of
// that chain. The WebSocket gateway does not use this package.
//
// Onion model execution order:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//
//	Request:   A.before → B.before → C.before → handler
//	Response:  handler → C.after → B.after → A.after
//
// Each middleware can:
//   - Do pre-processing (before calling next)
//   - Call next(ctx, req) to pass to the next layer
//   - Do post-processing (after next returns)
//   - Short-circuit by returning early without calling next (e.g., rate limiting)
package middleware

import "context"

// Request is the gateway-facing description of one RPC call: the
// service/method pair a Session.Request would be given, plus its
// positional params.
type Request struct {
	Service string
	Method  string
	Params  []any
}

// Response carries either the accumulated Result values or the error
// that stopped the chain.
type Response struct {
	Results []any
	Err     error
}

// HandlerFunc is the function signature for request handlers. Both the
// gateway's core handler and middleware-wrapped handlers share this
// signature.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// Middleware takes a handler and returns a new handler that wraps it.
// This is the decorator pattern — each middleware adds behavior around
// the next handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middlewares into a single middleware.
// It builds the chain from right to left so that the first middleware
// in the list is the outermost layer (executed first on request, last
// on response).
//
// Example:
//
//	chain := Chain(Logging, Timeout, RateLimit)
//	handler := chain(coreHandler)
//	// Execution: Logging → Timeout → RateLimit → coreHandler → RateLimit → Timeout → Logging
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
