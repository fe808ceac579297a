package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kcls/opensrf-go/internal/bus"
	"github.com/kcls/opensrf-go/internal/method"
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

type stubRegistrar struct {
	registered   int
	unregistered int
}

func (r *stubRegistrar) Register(ctx context.Context, domain, service, class string) error {
	r.registered++
	return nil
}

func (r *stubRegistrar) Unregister(ctx context.Context, domain, service, class string) error {
	r.unregistered++
	return nil
}

func TestSupervisorSpawnsMinWorkersAndShutsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	port := mustAtoi(t, mr.Port())
	domain := mr.Host()

	busCfg := func(string) bus.ClientConfig {
		return bus.ClientConfig{Username: "worker", Domain: bus.Domain{Name: domain, Port: port}}
	}

	registrar := &stubRegistrar{}
	sup := New(Config{
		Service:         "opensrf.test",
		Username:        "worker",
		RouterDomains:   []string{domain},
		BusConfig:       busCfg,
		Registry:        method.NewRegistry(),
		MinWorkers:      2,
		MaxWorkers:      2,
		RouterRegistrar: registrar,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, total := sup.WorkerCounts(); total == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, _, total := sup.WorkerCounts(); total != 2 {
		t.Fatalf("total workers = %d, want 2", total)
	}
	if registrar.registered != 1 {
		t.Fatalf("registered = %d, want 1", registrar.registered)
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if registrar.unregistered != 1 {
		t.Fatalf("unregistered = %d, want 1", registrar.unregistered)
	}
}

func TestSupervisorDefaultsMinMaxWorkers(t *testing.T) {
	sup := New(Config{})
	if sup.cfg.MinWorkers != 1 {
		t.Fatalf("MinWorkers = %d, want 1", sup.cfg.MinWorkers)
	}
	if sup.cfg.MaxWorkers != 20 {
		t.Fatalf("MaxWorkers = %d, want 20", sup.cfg.MaxWorkers)
	}
}
