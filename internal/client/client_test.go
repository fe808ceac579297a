package client

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/kcls/opensrf-go/internal/bus"
	"github.com/kcls/opensrf-go/loadbalance"
	"github.com/kcls/opensrf-go/registry"
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

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port := mustAtoi(t, mr.Port())

	cfgFactory := func(domain string) bus.ClientConfig {
		return bus.ClientConfig{Username: "tester", Domain: bus.Domain{Name: domain, Port: port}}
	}

	cl, err := Connect(cfgFactory(mr.Host()), cfgFactory, "router")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(cl.Close)
	return cl, mr
}

func TestServiceDomainFallsBackToPrimary(t *testing.T) {
	cl, mr := newTestClient(t)
	domain, err := cl.ServiceDomain("opensrf.unknown")
	if err != nil {
		t.Fatalf("ServiceDomain: %v", err)
	}
	if domain != mr.Host() {
		t.Fatalf("domain = %q, want primary domain %q", domain, mr.Host())
	}
}

func TestServiceDomainSingleCandidate(t *testing.T) {
	cl, _ := newTestClient(t)
	cl.SetServiceDomains(map[string][]string{"opensrf.test": {"private.example"}})

	domain, err := cl.ServiceDomain("opensrf.test")
	if err != nil {
		t.Fatalf("ServiceDomain: %v", err)
	}
	if domain != "private.example" {
		t.Fatalf("domain = %q, want private.example", domain)
	}
}

func TestServiceDomainUsesBalancer(t *testing.T) {
	cl, _ := newTestClient(t)
	cl.SetServiceDomains(map[string][]string{"opensrf.test": {"a.example", "b.example"}})
	cl.SetBalancer(&loadbalance.RoundRobinBalancer{})

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		domain, err := cl.ServiceDomain("opensrf.test")
		if err != nil {
			t.Fatalf("ServiceDomain: %v", err)
		}
		seen[domain] = true
	}
	if len(seen) != 2 {
		t.Fatalf("round robin should visit both domains, saw %v", seen)
	}
}

func TestDomainBusReusesPrimaryConnection(t *testing.T) {
	cl, mr := newTestClient(t)
	b, err := cl.DomainBus(mr.Host())
	if err != nil {
		t.Fatalf("DomainBus: %v", err)
	}
	if b != cl.Bus() {
		t.Fatal("DomainBus(primary domain) should return the primary connection")
	}
}

func TestSetBalancerOverridesDefault(t *testing.T) {
	cl, _ := newTestClient(t)
	custom := &loadbalance.RoundRobinBalancer{}
	cl.SetBalancer(custom)
	if cl.balancer != custom {
		t.Fatal("SetBalancer did not replace the default balancer")
	}

	cl.SetServiceDomains(map[string][]string{"opensrf.test": {"a.example"}})
	if _, err := cl.ServiceDomain("opensrf.test"); err != nil {
		t.Fatalf("ServiceDomain: %v", err)
	}

	_, err := custom.Pick([]registry.ServiceInstance{{Addr: "a.example", Weight: 1}})
	if err != nil {
		t.Fatalf("balancer should still be usable directly: %v", err)
	}
}
