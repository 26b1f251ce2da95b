package middleware

import (
	"context"
	"encoding/json"
	"time"

	"dipc/rpcerr"
)

type timeoutResult struct {
	data any
	err  error
}

// TimeoutMiddleware fails a call with Timeout if the handler chain hasn't
// returned within timeout. The handler goroutine is left running; it is the
// handler's own responsibility to observe ctx.Done() and return early.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params json.RawMessage) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan timeoutResult, 1)
			go func() {
				data, err := next(ctx, params)
				done <- timeoutResult{data, err}
			}()

			select {
			case r := <-done:
				return r.data, r.err
			case <-ctx.Done():
				return nil, rpcerr.New(rpcerr.Timeout, "request timed out")
			}
		}
	}
}
