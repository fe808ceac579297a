package router

import (
	"context"
	"testing"

	"github.com/kcls/opensrf-go/registry"
)

// mockRegistry is a minimal in-memory registry.Registry, standing in
// for EtcdRegistry so EtcdRegistrar's key-folding logic can be tested
// without a live etcd cluster.
type mockRegistry struct {
	instances map[string][]registry.ServiceInstance
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{instances: make(map[string][]registry.ServiceInstance)}
}

func (m *mockRegistry) Register(serviceName string, instance registry.ServiceInstance, ttl int64) error {
	m.instances[serviceName] = append(m.instances[serviceName], instance)
	return nil
}

func (m *mockRegistry) Deregister(serviceName string, addr string) error {
	out := m.instances[serviceName][:0]
	for _, inst := range m.instances[serviceName] {
		if inst.Addr != addr {
			out = append(out, inst)
		}
	}
	m.instances[serviceName] = out
	return nil
}

func (m *mockRegistry) Discover(serviceName string) ([]registry.ServiceInstance, error) {
	return m.instances[serviceName], nil
}

func (m *mockRegistry) Watch(serviceName string) <-chan []registry.ServiceInstance {
	ch := make(chan []registry.ServiceInstance)
	close(ch)
	return ch
}

func newTestRegistrar(reg registry.Registry, self string) *EtcdRegistrar {
	return &EtcdRegistrar{reg: reg, self: self}
}

func TestServiceKeyFoldsDomainServiceClass(t *testing.T) {
	if got, want := serviceKey("private.localhost", "opensrf.settings", "default"), "private.localhost/opensrf.settings/default"; got != want {
		t.Fatalf("serviceKey = %q, want %q", got, want)
	}
	if got, want := serviceKey("private.localhost", "opensrf.settings", ""), "private.localhost/opensrf.settings/default"; got != want {
		t.Fatalf("serviceKey with empty class = %q, want %q", got, want)
	}
}

func TestRegisterAndDiscover(t *testing.T) {
	reg := newMockRegistry()
	r := newTestRegistrar(reg, "opensrf:service:router:private.localhost:opensrf.settings")

	ctx := context.Background()
	if err := r.Register(ctx, "private.localhost", "opensrf.settings", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	addrs, err := r.Discover(ctx, "private.localhost", "opensrf.settings")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != r.self {
		t.Fatalf("Discover = %v, want [%s]", addrs, r.self)
	}
}

func TestUnregisterRemovesInstance(t *testing.T) {
	reg := newMockRegistry()
	r := newTestRegistrar(reg, "worker-addr")

	ctx := context.Background()
	if err := r.Register(ctx, "private.localhost", "opensrf.settings", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Unregister(ctx, "private.localhost", "opensrf.settings", ""); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	addrs, err := r.Discover(ctx, "private.localhost", "opensrf.settings")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(addrs) != 0 {
		t.Fatalf("Discover after Unregister = %v, want none", addrs)
	}
}

func TestDiscoverDistinguishesServices(t *testing.T) {
	reg := newMockRegistry()
	r := newTestRegistrar(reg, "worker-addr")
	ctx := context.Background()

	if err := r.Register(ctx, "private.localhost", "opensrf.settings", "default"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	addrs, err := r.Discover(ctx, "private.localhost", "opensrf.other")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(addrs) != 0 {
		t.Fatalf("Discover for unrelated service = %v, want none", addrs)
	}
}
