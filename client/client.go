// Package client is the public entry point applications use to talk
// to the bus: connect once, then Call any OpenSRF service/method pair
// without touching the Session/Request machinery directly.
//
// Call flow:
//
//	Call(ctx, "opensrf.settings", "opensrf.settings.ruleset.retrieve", params)
//	  → Client.ServiceDomain(service)  → pick a domain (round-robin by default)
//	  → session.New(cl, service, domain)
//	  → sess.Request(ctx, method, params)
//	  → it.All(ctx)                    → drain every Result
package client

import (
	"context"

	"github.com/kcls/opensrf-go/internal/bus"
	iclient "github.com/kcls/opensrf-go/internal/client"
	"github.com/kcls/opensrf-go/internal/session"
	"github.com/kcls/opensrf-go/loadbalance"
)

// Config names the primary bus connection. Port/Password apply to
// every domain this client lazily opens, not just the primary one.
type Config struct {
	Username       string
	Password       string
	Domain         string
	Port           int
	RouterUsername string
}

// Client is a thin convenience wrapper over the bus client and the
// per-call Session it takes to open, call, and drain one request.
type Client struct {
	inner *iclient.Client
}

// Connect opens the primary bus connection described by cfg.
func Connect(cfg Config) (*Client, error) {
	factory := func(domain string) bus.ClientConfig {
		return bus.ClientConfig{
			Username: cfg.Username,
			Password: cfg.Password,
			Domain:   bus.Domain{Name: domain, Port: cfg.Port},
		}
	}

	inner, err := iclient.Connect(factory(cfg.Domain), factory, cfg.RouterUsername)
	if err != nil {
		return nil, err
	}
	return &Client{inner: inner}, nil
}

// SetBalancer overrides the strategy used to pick a domain when a
// service is hosted on more than one (default round-robin).
func (c *Client) SetBalancer(b loadbalance.Balancer) {
	c.inner.SetBalancer(b)
}

// SetServiceDomains records, for each service, the domains known to
// host it.
func (c *Client) SetServiceDomains(domains map[string][]string) {
	c.inner.SetServiceDomains(domains)
}

// Call opens a one-shot Session against service, invokes method with
// params, and returns every Result it produced before Complete.
func (c *Client) Call(ctx context.Context, service, method string, params []any) ([]any, error) {
	domain, err := c.inner.ServiceDomain(service)
	if err != nil {
		return nil, err
	}

	sess := session.New(c.inner, service, domain)
	it, err := sess.Request(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return it.All(ctx)
}

// Close tears down every open bus connection.
func (c *Client) Close() {
	c.inner.Close()
}
