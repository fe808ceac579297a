// Package registry defines the backing store for a router's presence
// table: which bus addresses are currently allowed to receive a given
// service's Requests. internal/router folds its own domain/service/class
// addressing into the single serviceName this interface expects (see
// router.serviceKey), so from this package's point of view it is just
// registering, discovering, and watching named groups of instances with
// TTL-based crash detection — a worker that dies without unregistering
// drops out once its lease expires, instead of lingering as a dead
// route.
package registry

// ServiceInstance is one registered route: the bus address that may
// receive Requests for a service, plus the weight/version a balancer
// (see the loadbalance package) can use to choose among several.
type ServiceInstance struct {
	Addr    string // Bus address of the registering worker/router
	Weight  int    // Weight for load balancing (higher = more traffic)
	Version string // Service version, for staged rollouts
}

// Registry is the interface for registering and discovering routes.
// EtcdRegistry is the production implementation; internal/router's
// tests back it with an in-memory mock instead of a live etcd cluster.
type Registry interface {
	// Register adds an instance to the registry under a TTL lease.
	// The instance is automatically removed if the lease isn't renewed
	// before it expires (e.g., the registering process crashed).
	Register(serviceName string, instance ServiceInstance, ttl int64) error

	// Deregister removes an instance from the registry. Called during
	// graceful shutdown before the worker stops accepting Requests.
	Deregister(serviceName string, addr string) error

	// Discover returns all currently registered instances for a service.
	// A router calls this to find every address allowed to receive
	// that service's Requests.
	Discover(serviceName string) ([]ServiceInstance, error)

	// Watch returns a channel that emits the updated instance list
	// whenever registrations change, without the caller having to poll.
	Watch(serviceName string) <-chan []ServiceInstance
}
