// Package middleware provides reusable rpcserver.Middleware implementations:
// structured logging, token-bucket rate limiting, and per-call timeouts.
package middleware

import "dipc/rpcserver"

// HandlerFunc and Middleware are aliased from rpcserver so callers can wire
// these constructors directly into Server.Use without importing rpcserver
// themselves.
type HandlerFunc = rpcserver.HandlerFunc

type Middleware = rpcserver.Middleware

// Chain composes middlewares in onion order: the first middleware given
// wraps outermost, the last wraps innermost (closest to the handler).
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
