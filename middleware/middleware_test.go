package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/kcls/opensrf-go/internal/osrferr"
)

func echoHandler(ctx context.Context, req *Request) *Response {
	return &Response{Results: []any{"ok"}}
}

func slowHandler(ctx context.Context, req *Request) *Response {
	time.Sleep(200 * time.Millisecond)
	return &Response{Results: []any{"ok"}}
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware()(echoHandler)

	req := &Request{Service: "opensrf.test", Method: "Add"}
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if resp.Err != nil {
		t.Fatalf("expect no error, got %v", resp.Err)
	}
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeOutMiddleware(500 * time.Millisecond)(echoHandler)

	req := &Request{Service: "opensrf.test", Method: "Add"}
	resp := handler(context.Background(), req)

	if resp.Err != nil {
		t.Fatalf("expect no error, got %v", resp.Err)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeOutMiddleware(50 * time.Millisecond)(slowHandler)

	req := &Request{Service: "opensrf.test", Method: "Add"}
	resp := handler(context.Background(), req)

	if resp.Err == nil {
		t.Fatal("expect timeout error")
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1/s, burst=2: first 2 calls pass immediately, third is rejected.
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := &Request{Service: "opensrf.test", Method: "Add"}

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), req)
		if resp.Err != nil {
			t.Fatalf("request %d should pass, got error: %v", i, resp.Err)
		}
	}

	resp := handler(context.Background(), req)
	if resp.Err == nil {
		t.Fatal("expect request 3 to be rate limited")
	}
}

func TestRetryRecoversFromTimeout(t *testing.T) {
	attempts := 0
	flaky := func(ctx context.Context, req *Request) *Response {
		attempts++
		if attempts < 2 {
			return &Response{Err: &osrferr.TimeoutError{Msg: "bus round-trip timed out"}}
		}
		return &Response{Results: []any{"ok"}}
	}

	handler := RetryMiddleware(3, time.Millisecond)(flaky)
	resp := handler(context.Background(), &Request{Service: "opensrf.test", Method: "Add"})

	if resp.Err != nil {
		t.Fatalf("expect eventual success, got %v", resp.Err)
	}
	if attempts != 2 {
		t.Fatalf("expect 2 attempts, got %d", attempts)
	}
}

func TestChain(t *testing.T) {
	chained := Chain(LoggingMiddleware(), TimeOutMiddleware(500*time.Millisecond))
	handler := chained(echoHandler)

	req := &Request{Service: "opensrf.test", Method: "Add"}
	resp := handler(context.Background(), req)

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if resp.Err != nil {
		t.Fatalf("expect no error, got %v", resp.Err)
	}
}
