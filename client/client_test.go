package client

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/bus"
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

// runFakeWorker answers the first Request addressed to service on
// domain with a single Result followed by Complete, standing in for a
// real worker process.
func runFakeWorker(t *testing.T, domain string, port int, service string, result any) {
	t.Helper()
	workerAddr := addr.ForService("router", domain, service)

	workerBus, err := bus.Connect(bus.ClientConfig{Username: "worker", Domain: bus.Domain{Name: domain, Port: port}})
	if err != nil {
		t.Fatalf("worker bus.Connect: %v", err)
	}
	t.Cleanup(workerBus.Close)

	go func() {
		env, err := workerBus.RecvFrom(context.Background(), 5, workerAddr.String())
		if err != nil || env == nil {
			return
		}

		var trace int
		for _, m := range env.Body {
			if m.Type == osrfmsg.TypeRequest {
				trace = m.ThreadTrace
			}
		}

		reply := osrfmsg.NewEnvelope(env.From, workerAddr.String(), env.Thread)
		reply.Body = []osrfmsg.Message{
			osrfmsg.NewResult(trace, result),
			osrfmsg.NewStatus(trace, osrfmsg.StatusComplete, "", ""),
		}
		workerBus.Send(context.Background(), reply)
	}()
}

func TestClientCallRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	port := mustAtoi(t, mr.Port())

	cl, err := Connect(Config{Username: "tester", Domain: mr.Host(), Port: port, RouterUsername: "router"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(cl.Close)

	runFakeWorker(t, mr.Host(), port, "opensrf.test", float64(3))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	results, err := cl.Call(ctx, "opensrf.test", "add", []any{float64(1), float64(2)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || results[0] != float64(3) {
		t.Fatalf("results = %v, want [3]", results)
	}
}
