package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	iaddr "github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/bus"
	iclient "github.com/kcls/opensrf-go/internal/client"
	"github.com/kcls/opensrf-go/internal/osrfmsg"
)

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

func newTestClient(t *testing.T) (*iclient.Client, string, int) {
	t.Helper()
	mr := miniredis.RunT(t)
	port := mustAtoi(t, mr.Port())

	cfgFactory := func(domain string) bus.ClientConfig {
		return bus.ClientConfig{Username: "tester", Domain: bus.Domain{Name: domain, Port: port}}
	}

	cl, err := iclient.Connect(cfgFactory(mr.Host()), cfgFactory, "router")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(cl.Close)
	return cl, mr.Host(), port
}

// runFakeWorker answers every request on service's address for one
// thread: Connect gets an OK status bound to the worker's own
// address, Requests get a single Result + Complete, and it exits once
// the calling goroutine's context is cancelled.
func runFakeWorker(t *testing.T, domain string, port int, service string) {
	t.Helper()
	workerAddr := iaddr.ForService("router", domain, service)

	workerBus, err := bus.Connect(bus.ClientConfig{Username: "worker", Domain: bus.Domain{Name: domain, Port: port}})
	if err != nil {
		t.Fatalf("worker bus.Connect: %v", err)
	}
	t.Cleanup(workerBus.Close)

	boundAddr := workerBus.Address().String()

	go func() {
		for i := 0; i < 2; i++ {
			env, err := workerBus.RecvFrom(context.Background(), 5, workerAddr.String())
			if err != nil || env == nil {
				return
			}

			for _, m := range env.Body {
				switch m.Type {
				case osrfmsg.TypeConnect:
					reply := osrfmsg.NewEnvelope(env.From, boundAddr, env.Thread)
					reply.Body = []osrfmsg.Message{osrfmsg.NewStatus(m.ThreadTrace, osrfmsg.StatusOK, "", "")}
					workerBus.Send(context.Background(), reply)
				case osrfmsg.TypeRequest:
					reply := osrfmsg.NewEnvelope(env.From, boundAddr, env.Thread)
					reply.Body = []osrfmsg.Message{
						osrfmsg.NewResult(m.ThreadTrace, "pong"),
						osrfmsg.NewStatus(m.ThreadTrace, osrfmsg.StatusComplete, "", ""),
					}
					workerBus.Send(context.Background(), reply)
				}
			}
		}
	}()
}

func TestRequestAllDrainsResults(t *testing.T) {
	cl, domain, port := newTestClient(t)
	runFakeWorker(t, domain, port, "opensrf.test")

	sess := New(cl, "opensrf.test", domain)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	it, err := sess.Request(ctx, "ping", nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	results, err := it.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(results) != 1 || results[0] != "pong" {
		t.Fatalf("results = %v, want [pong]", results)
	}
}

func TestConnectBindsRemoteAddr(t *testing.T) {
	cl, domain, port := newTestClient(t)
	runFakeWorker(t, domain, port, "opensrf.test")

	sess := New(cl, "opensrf.test", domain)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := sess.Connect(ctx, 3); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !sess.connected || sess.remoteAddr == "" {
		t.Fatalf("session not marked connected with a bound worker address")
	}

	// Connecting again is a no-op, not a second Connect message.
	if err := sess.Connect(ctx, 3); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
}

func TestDisconnectClearsState(t *testing.T) {
	cl, domain, port := newTestClient(t)
	runFakeWorker(t, domain, port, "opensrf.test")

	sess := New(cl, "opensrf.test", domain)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := sess.Connect(ctx, 3); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := sess.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if sess.connected || sess.remoteAddr != "" {
		t.Fatalf("session still marked connected after Disconnect")
	}
}

func TestRequestTimesOutWithNoWorker(t *testing.T) {
	cl, domain, _ := newTestClient(t)

	sess := New(cl, "opensrf.nonexistent", domain)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	it, err := sess.Request(ctx, "ping", nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	it.SetTimeout(1)

	_, err = it.All(ctx)
	if err == nil {
		t.Fatal("expected a timeout error, got nil")
	}
}
