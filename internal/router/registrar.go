// Package router backs the Router presence/registration table with
// etcd, adapting registry.Registry/EtcdRegistry (TTL lease + KeepAlive
// service discovery) to give the "register with every router for each
// hosting domain" operation crash-detection semantics equivalent to a
// Drop-triggered queue purge: when a worker process dies without
// explicitly unregistering, its lease simply expires and the registrar
// key disappears on its own. Where registry.Registry
// discovers load-balanced instances of one service, a router
// discovers the bus addresses allowed to receive a given service's
// Requests on a given domain — so a registration key is
// "domain/service/class" and the "instance" is just this worker's bus
// address.
//
// Key layout: /opensrf-go/{domain}/{service}/{class}/{self}, value is
// the JSON-encoded registry.ServiceInstance whose Addr is the
// registering worker's bus address (registry.EtcdRegistry's own
// key/value shape, unmodified).
package router

import (
	"context"
	"fmt"

	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/supervisor"
	"github.com/kcls/opensrf-go/registry"
)

// defaultTTL is how long a registration survives without a renewed
// lease before etcd expires it — the crash-detection window.
const defaultTTL = 15 // seconds

// EtcdRegistrar implements supervisor.RouterRegistrar on top of the
// registry.Registry interface, rather than talking to etcd directly.
type EtcdRegistrar struct {
	reg  registry.Registry
	self string // this process's bus address, stored alongside each registration
}

var _ supervisor.RouterRegistrar = (*EtcdRegistrar)(nil)

// NewEtcdRegistrar connects to the given etcd endpoints.
func NewEtcdRegistrar(endpoints []string, selfAddr string) (*EtcdRegistrar, error) {
	reg, err := registry.NewEtcdRegistry(endpoints)
	if err != nil {
		return nil, err
	}
	return &EtcdRegistrar{reg: reg, self: selfAddr}, nil
}

// serviceKey folds domain/service/class into the single serviceName
// registry.Registry expects — it has no notion of domains or classes
// of its own.
func serviceKey(domain, service, class string) string {
	if class == "" {
		class = "default"
	}
	return fmt.Sprintf("%s/%s/%s", domain, service, class)
}

// Register creates a leased registration and starts renewing it in
// the background until Unregister or lease expiry.
func (r *EtcdRegistrar) Register(ctx context.Context, domain, service, class string) error {
	instance := registry.ServiceInstance{Addr: r.self, Weight: 1}
	if err := r.reg.Register(serviceKey(domain, service, class), instance, defaultTTL); err != nil {
		return err
	}
	logging.Logger().Infow("registered with router", "domain", domain, "service", service, "class", class)
	return nil
}

// Unregister removes the registration immediately, the equivalent of
// the Rust Bus Drop impl's queue purge but for router presence.
func (r *EtcdRegistrar) Unregister(ctx context.Context, domain, service, class string) error {
	return r.reg.Deregister(serviceKey(domain, service, class), r.self)
}

// Discover lists the bus addresses currently registered for a service
// under the "default" class, used by a router (or a test) to see who
// would receive a Request. Registrations under other classes are not
// listed.
func (r *EtcdRegistrar) Discover(ctx context.Context, domain, service string) ([]string, error) {
	instances, err := r.reg.Discover(serviceKey(domain, service, "default"))
	if err != nil {
		return nil, err
	}
	addrs := make([]string, 0, len(instances))
	for _, inst := range instances {
		addrs = append(addrs, inst.Addr)
	}
	return addrs, nil
}

// Close is a no-op: registry.Registry has no explicit teardown, and
// its etcd lease goroutines exit on their own once the process stops
// renewing them.
func (r *EtcdRegistrar) Close() error {
	return nil
}
