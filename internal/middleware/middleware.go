// Package middleware implements an onion-model middleware chain for
// method-dispatch, wrapping every worker's method
// invocation.
//
// Onion model execution order:
//
//	NewChain(A, B, C).Wrap(name, handler)  ==  A(B(C(handler)))
package middleware

import "github.com/kcls/opensrf-go/internal/method"

// Middleware wraps a method.Handler, optionally short-circuiting it
// (e.g. rate limiting) or wrapping its execution (logging, timeout).
type Middleware func(methodName string, next method.Handler) method.Handler

// Chain composes middlewares into the order they were supplied: the
// first Middleware is outermost (runs first on the way in, last on
// the way out).
type Chain struct {
	mws []Middleware
}

// NewChain builds a Chain from the supplied middlewares, outermost first.
func NewChain(mws ...Middleware) *Chain {
	return &Chain{mws: mws}
}

// Wrap returns handler decorated by every middleware in the chain.
func (c *Chain) Wrap(methodName string, handler method.Handler) method.Handler {
	next := handler
	for i := len(c.mws) - 1; i >= 0; i-- {
		next = c.mws[i](methodName, next)
	}
	return next
}
