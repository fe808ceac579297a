package bus

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/kcls/opensrf-go/internal/osrfmsg"
)

func newTestBus(t *testing.T) (*Bus, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	b, err := Connect(ClientConfig{
		Username: "tester",
		Domain:   Domain{Name: mr.Host(), Port: mustAtoi(t, mr.Port())},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(b.Close)

	return b, mr
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			t.Fatalf("not a port number: %s", s)
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func TestSendRecvRoundTrip(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()

	recipient := b.Address().String()
	env := osrfmsg.NewEnvelope(recipient, recipient, "thread-1")
	env.Body = []osrfmsg.Message{osrfmsg.NewConnect(1)}

	if err := b.SendTo(ctx, env, recipient); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	got, err := b.Recv(ctx, 1)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got == nil {
		t.Fatal("expected an envelope, got nil")
	}
	if got.Thread != "thread-1" {
		t.Fatalf("thread = %q, want thread-1", got.Thread)
	}
	if len(got.Body) != 1 || got.Body[0].Type != osrfmsg.TypeConnect {
		t.Fatalf("unexpected body: %+v", got.Body)
	}
}

func TestRecvNonBlockingEmpty(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()

	got, err := b.Recv(ctx, 0)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no envelope, got %+v", got)
	}
}

func TestClearBus(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()

	recipient := b.Address().String()
	env := osrfmsg.NewEnvelope(recipient, recipient, "thread-2")
	env.Body = []osrfmsg.Message{osrfmsg.NewDisconnect(1)}

	if err := b.SendTo(ctx, env, recipient); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	n, err := b.LLen(ctx, recipient)
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if n != 1 {
		t.Fatalf("LLen = %d, want 1", n)
	}

	if err := b.ClearBus(ctx); err != nil {
		t.Fatalf("ClearBus: %v", err)
	}

	n, err = b.LLen(ctx, recipient)
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if n != 0 {
		t.Fatalf("LLen after clear = %d, want 0", n)
	}
}
