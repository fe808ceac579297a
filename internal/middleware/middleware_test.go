package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/kcls/opensrf-go/internal/method"
)

func echoHandler(ctx *method.Context, params []any) error {
	for _, p := range params {
		if err := ctx.Emit(p); err != nil {
			return err
		}
	}
	return nil
}

func newContext() (*method.Context, *[]any) {
	var emitted []any
	ctx := &method.Context{Emit: func(v any) error { emitted = append(emitted, v); return nil }}
	return ctx, &emitted
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(methodName string, next method.Handler) method.Handler {
			return func(ctx *method.Context, params []any) error {
				order = append(order, name+":in")
				err := next(ctx, params)
				order = append(order, name+":out")
				return err
			}
		}
	}

	chain := NewChain(mark("A"), mark("B"))
	wrapped := chain.Wrap("opensrf.test.echo", echoHandler)

	ctx, _ := newContext()
	if err := wrapped(ctx, nil); err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	want := []string{"A:in", "B:in", "B:out", "A:out"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTimeoutPasses(t *testing.T) {
	wrapped := Timeout(50 * time.Millisecond)("opensrf.test.echo", echoHandler)
	ctx, emitted := newContext()
	if err := wrapped(ctx, []any{"ok"}); err != nil {
		t.Fatalf("Timeout: %v", err)
	}
	if len(*emitted) != 1 || (*emitted)[0] != "ok" {
		t.Fatalf("emitted = %v", *emitted)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	slow := func(ctx *method.Context, params []any) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	wrapped := Timeout(5 * time.Millisecond)("opensrf.test.slow", slow)
	ctx, _ := newContext()
	if err := wrapped(ctx, nil); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestRateLimit(t *testing.T) {
	wrapped := RateLimit(1, 1)("opensrf.test.echo", echoHandler)
	ctx, _ := newContext()

	if err := wrapped(ctx, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := wrapped(ctx, nil); err == nil {
		t.Fatal("second call should have been rate limited")
	}
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	attempts := 0
	flaky := func(ctx *method.Context, params []any) error {
		attempts++
		if attempts < 2 {
			return errors.New("timeout waiting for downstream")
		}
		return nil
	}
	wrapped := Retry(3, time.Millisecond)("opensrf.test.flaky", flaky)
	ctx, _ := newContext()

	if err := wrapped(ctx, nil); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestRetryGivesUpOnNonTransientError(t *testing.T) {
	attempts := 0
	failing := func(ctx *method.Context, params []any) error {
		attempts++
		return errors.New("bad request: missing argument")
	}
	wrapped := Retry(3, time.Millisecond)("opensrf.test.failing", failing)
	ctx, _ := newContext()

	if err := wrapped(ctx, nil); err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry for non-transient error)", attempts)
	}
}

func TestLogging(t *testing.T) {
	wrapped := Logging()("opensrf.test.echo", echoHandler)
	ctx, emitted := newContext()
	if err := wrapped(ctx, []any{1.0}); err != nil {
		t.Fatalf("Logging: %v", err)
	}
	if len(*emitted) != 1 {
		t.Fatalf("emitted = %v", *emitted)
	}
}
