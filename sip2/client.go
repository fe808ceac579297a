package sip2

import (
	"fmt"
	"time"

	"github.com/kcls/opensrf-go/transport"
)

// Client sends SIP2 messages to an ACS (circulation backend) over a
// pool of exclusively-held TCP connections. Transact borrows one
// connection for the duration of a single request/response pair and
// returns it afterward, which is exactly the use transport.ConnPool
// is built for.
type Client struct {
	pool        *transport.ConnPool
	readTimeout time.Duration
}

// NewClient opens a pool of up to maxConns SIP2 connections to addr,
// dialing lazily. readTimeout bounds how long Transact waits for a
// reply; zero means no read deadline.
func NewClient(addr string, maxConns int, dialTimeout, readTimeout time.Duration) *Client {
	return &Client{pool: NewPool(addr, maxConns, dialTimeout), readTimeout: readTimeout}
}

// Transact borrows a connection, writes req, reads the ACS's reply,
// and returns the connection to the pool. A connection that errors is
// marked unusable so Put discards rather than recycles it.
func (c *Client) Transact(req Message) (Message, error) {
	pc, err := c.pool.Get()
	if err != nil {
		return Message{}, fmt.Errorf("sip2: borrowing connection: %w", err)
	}
	conn := NewConn(pc)

	if err := conn.WriteMessage(req); err != nil {
		pc.MarkUnusable()
		c.pool.Put(pc)
		return Message{}, fmt.Errorf("sip2: writing request: %w", err)
	}

	var deadline time.Time
	if c.readTimeout > 0 {
		deadline = time.Now().Add(c.readTimeout)
	}
	resp, err := conn.ReadMessage(deadline)
	if err != nil {
		pc.MarkUnusable()
		c.pool.Put(pc)
		return Message{}, fmt.Errorf("sip2: reading response: %w", err)
	}

	c.pool.Put(pc)
	return resp, nil
}

// Close shuts down the underlying connection pool.
func (c *Client) Close() error {
	return c.pool.Close()
}
