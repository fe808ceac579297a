// Package client implements the client-facing half of the Bus Client
// and its per-domain connection cache: one primary Bus plus
// lazily-opened connections to other domains, and a backlog of
// envelopes not yet claimed by a Session.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/bus"
	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/osrfmsg"
	"github.com/kcls/opensrf-go/internal/util"
	"github.com/kcls/opensrf-go/loadbalance"
	"github.com/kcls/opensrf-go/registry"
)

func randomThread() string {
	return uuid.NewString()
}

const defaultRouterCommandTimeout = 10 // seconds

// Client holds one primary bus connection, the per-domain connection
// cache, and the shared backlog. Its mutex serializes every operation,
// including blocking receives, so a Client shared by concurrent callers
// (as the HTTP gateway does) handles one call at a time.
type Client struct {
	mu sync.Mutex

	primary    *bus.Bus
	domain     string
	remoteBus  map[string]*bus.Bus
	cfgFactory func(domain string) bus.ClientConfig

	backlog []osrfmsg.Envelope

	routerUsername string

	// serviceDomains lists, per service, every domain a router has
	// advertised hosting it. balancer picks among them
	// when a caller asks ServiceDomain for a service with more than
	// one candidate, instead of always falling back to the primary
	// domain's router.
	serviceDomains map[string][]registry.ServiceInstance
	balancer       loadbalance.Balancer
}

// Connect opens the primary Bus connection for this client.
//
// cfgFactory builds the connection config for a given domain name,
// reusing the credential template for domains other than the primary
// one: every domain connection is opened lazily, on first use.
func Connect(primaryCfg bus.ClientConfig, cfgFactory func(domain string) bus.ClientConfig, routerUsername string) (*Client, error) {
	b, err := bus.Connect(primaryCfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		primary:        b,
		domain:         primaryCfg.Domain.Name,
		remoteBus:      make(map[string]*bus.Bus),
		cfgFactory:     cfgFactory,
		routerUsername: routerUsername,
		serviceDomains: make(map[string][]registry.ServiceInstance),
		balancer:       &loadbalance.RoundRobinBalancer{},
	}, nil
}

// SetBalancer overrides the strategy used by ServiceDomain to choose
// among several domains hosting the same service. The default is
// round-robin.
func (c *Client) SetBalancer(b loadbalance.Balancer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balancer = b
}

// SetServiceDomains records, for each service, the domains a router
// has advertised hosting it — the configuration-derived table
// ServiceDomain picks from, since a service may be registered
// with more than one router.
func (c *Client) SetServiceDomains(domains map[string][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serviceDomains = make(map[string][]registry.ServiceInstance, len(domains))
	for service, ds := range domains {
		instances := make([]registry.ServiceInstance, len(ds))
		for i, d := range ds {
			instances[i] = registry.ServiceInstance{Addr: d, Weight: 1}
		}
		c.serviceDomains[service] = instances
	}
}

// ServiceDomain picks the domain a Session should target for service,
// via the configured Balancer when more than one domain hosts it,
// falling back to this client's primary domain when none is known.
func (c *Client) ServiceDomain(service string) (string, error) {
	c.mu.Lock()
	instances := c.serviceDomains[service]
	balancer := c.balancer
	primary := c.domain
	c.mu.Unlock()

	if len(instances) == 0 {
		return primary, nil
	}
	if len(instances) == 1 {
		return instances[0].Addr, nil
	}

	inst, err := balancer.Pick(instances)
	if err != nil {
		return "", fmt.Errorf("picking domain for service %q: %w", service, err)
	}
	return inst.Addr, nil
}

// Bus returns the primary connection.
func (c *Client) Bus() *bus.Bus { return c.primary }

// Domain returns the primary connection's domain.
func (c *Client) Domain() string { return c.domain }

// DomainBus returns the Bus serving domain, opening a new connection
// on first use.
func (c *Client) DomainBus(domain string) (*bus.Bus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.domainBusLocked(domain)
}

func (c *Client) domainBusLocked(domain string) (*bus.Bus, error) {
	if domain == c.domain {
		return c.primary, nil
	}
	if b, ok := c.remoteBus[domain]; ok {
		return b, nil
	}

	cfg := c.cfgFactory(domain)
	cfg.Domain.Name = domain

	b, err := bus.Connect(cfg)
	if err != nil {
		return nil, err
	}

	logging.Logger().Infow("opened connection to new domain", "domain", domain)
	c.remoteBus[domain] = b
	return b, nil
}

// recvSessionFromBacklog pulls the first backlogged envelope matching
// thread, if any.
func (c *Client) recvSessionFromBacklog(thread string) *osrfmsg.Envelope {
	for i, env := range c.backlog {
		if env.Thread == thread {
			c.backlog = append(c.backlog[:i], c.backlog[i+1:]...)
			return &env
		}
	}
	return nil
}

// Wait reports whether any backlog traffic exists, blocking up to
// timeout seconds for new bus traffic if the backlog is currently
// empty. Useful for polling many sessions at once instead of each
// session busy-waiting individually.
func (c *Client) Wait(ctx context.Context, timeoutSeconds int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.backlog) > 0 {
		return true, nil
	}

	timer := util.NewTimer(timeoutSeconds)
	for len(c.backlog) == 0 && !timer.Done() {
		env, err := c.primary.Recv(ctx, timer.Remaining())
		if err != nil {
			return false, err
		}
		if env != nil {
			c.backlog = append(c.backlog, *env)
			break
		}
	}

	return len(c.backlog) > 0, nil
}

// RecvSession returns the next envelope for thread, pulling from the
// backlog first and falling back to the bus until timer expires.
func (c *Client) RecvSession(ctx context.Context, timer *util.Timer, thread string) (*osrfmsg.Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if env := c.recvSessionFromBacklog(thread); env != nil {
			return env, nil
		}
		if timer.Done() {
			return nil, nil
		}

		env, err := c.primary.Recv(ctx, timer.Remaining())
		if err != nil {
			return nil, err
		}
		if env != nil {
			c.backlog = append(c.backlog, *env)
		}
	}
}

// ClearBacklog discards all unprocessed backlogged envelopes.
func (c *Client) ClearBacklog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backlog = nil
}

// Clear discards the backlog and purges this client's own bus queue.
func (c *Client) Clear(ctx context.Context) error {
	c.ClearBacklog()
	return c.primary.ClearBus(ctx)
}

// SendRouterCommand sends a register/unregister/class-list style
// command directly to the router running on domain, optionally
// awaiting its reply.
func (c *Client) SendRouterCommand(ctx context.Context, domain, command, routerClass string, awaitReply bool) (*osrfmsg.Envelope, error) {
	routerAddr := addr.ForRouter(c.routerUsername, domain)

	env := osrfmsg.NewEnvelope(routerAddr.String(), c.primary.Address().String(), randomThread())
	env.RouterCommand = command
	env.RouterClass = routerClass

	b, err := c.DomainBus(domain)
	if err != nil {
		return nil, err
	}
	if err := b.Send(ctx, env); err != nil {
		return nil, err
	}

	if !awaitReply {
		return nil, nil
	}

	reply, err := c.primary.Recv(ctx, defaultRouterCommandTimeout)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, fmt.Errorf("router command %s returned no results in %d seconds", command, defaultRouterCommandTimeout)
	}
	return reply, nil
}

// Close tears down every open bus connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primary.Close()
	for _, b := range c.remoteBus {
		b.Close()
	}
}
