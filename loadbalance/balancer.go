// Package loadbalance provides load balancing strategies for picking
// among several domains that host the same OpenSRF service. A service
// can be registered with more than one router — it registers with
// every router for each hosting domain that lists the service — so a
// client issuing a Request must pick one of those domains before
// opening a Session — this package is that pick.
//
// registry.ServiceInstance.Addr doubles as a domain name here rather
// than a host:port network address; Weight still means what it says.
//
// Three strategies are implemented:
//   - RoundRobin:      stateless services, equal-capacity domains
//   - WeightedRandom:  heterogeneous domains (different CPU/memory)
//   - ConsistentHash:  stateful services requiring session affinity
package loadbalance

import "github.com/kcls/opensrf-go/registry"

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each session-opening Request to
// select a target domain.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every RPC call — must be goroutine-safe.
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
