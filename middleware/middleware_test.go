package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"dipc/rpcerr"
)

func echoHandler(ctx context.Context, params json.RawMessage) (any, error) {
	return "ok", nil
}

func slowHandler(ctx context.Context, params json.RawMessage) (any, error) {
	time.Sleep(200 * time.Millisecond)
	return "ok", nil
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware(zap.NewNop())(echoHandler)

	data, err := handler(context.Background(), nil)
	if err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
	if data != "ok" {
		t.Fatalf("expect data 'ok', got %v", data)
	}
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeoutMiddleware(500 * time.Millisecond)(echoHandler)

	_, err := handler(context.Background(), nil)
	if err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeoutMiddleware(50 * time.Millisecond)(slowHandler)

	_, err := handler(context.Background(), nil)
	if err == nil {
		t.Fatal("expect timeout error")
	}
	var rerr *rpcerr.Error
	if !errors.As(err, &rerr) || rerr.Code != rpcerr.Timeout {
		t.Fatalf("expect rpcerr.Timeout, got %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1/sec, burst=2 → first 2 calls pass, the 3rd is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)

	for i := 0; i < 2; i++ {
		if _, err := handler(context.Background(), nil); err != nil {
			t.Fatalf("call %d should pass, got error: %v", i, err)
		}
	}

	_, err := handler(context.Background(), nil)
	if err == nil {
		t.Fatal("expect 3rd call to be rate limited")
	}
}

func TestChain(t *testing.T) {
	chained := Chain(LoggingMiddleware(zap.NewNop()), TimeoutMiddleware(500*time.Millisecond))
	handler := chained(echoHandler)

	data, err := handler(context.Background(), nil)
	if err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
	if data != "ok" {
		t.Fatalf("expect data 'ok', got %v", data)
	}
}
