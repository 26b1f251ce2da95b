package middleware

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"dipc/rpcserver"
)

// LoggingMiddleware logs method, duration, and error (if any) for every
// dispatched call at Info level.
func LoggingMiddleware(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params json.RawMessage) (any, error) {
			start := time.Now()
			method, _ := rpcserver.ContextMethod(ctx)

			data, err := next(ctx, params)

			fields := []zap.Field{
				zap.String("method", method),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				log.Info("rpc call", append(fields, zap.Error(err))...)
			} else {
				log.Info("rpc call", fields...)
			}
			return data, err
		}
	}
}
