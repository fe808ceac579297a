// Connection-level SIP2 I/O: read/write whole messages framed by the
// "\r" terminator, and a pool of such connections to an ILS-facing
// SIP2 server. The pool itself is transport.ConnPool (see
// transport/pool.go), reused verbatim for its borrow/return semantics
// — a SIP2 session claims one connection exclusively for the duration
// of a request/response pair, which is exactly the "connections used
// exclusively" case that package's doc comment calls out as its
// intended use (grounded on the
// sip2-mediator's one-connection-per-session pattern).
package sip2

import (
	"bufio"
	"net"
	"time"

	"github.com/kcls/opensrf-go/transport"
)

// Conn is one SIP2 connection to an ACS (circulation backend) or, on
// the server side, to an SC (self-check terminal).
type Conn struct {
	net.Conn
	r *bufio.Reader
}

// NewConn wraps an already-dialed net.Conn for SIP2 message framing.
func NewConn(nc net.Conn) *Conn {
	return &Conn{Conn: nc, r: bufio.NewReader(nc)}
}

// ReadMessage blocks for one "\r"-terminated SIP2 message and parses
// it. deadline of zero means no read deadline is set.
func (c *Conn) ReadMessage(deadline time.Time) (Message, error) {
	if !deadline.IsZero() {
		if err := c.Conn.SetReadDeadline(deadline); err != nil {
			return Message{}, err
		}
	}
	line, err := c.r.ReadString('\r')
	if err != nil {
		return Message{}, err
	}
	return FromSIP(line[:len(line)-1])
}

// WriteMessage serializes m and appends the "\r" terminator.
func (c *Conn) WriteMessage(m Message) error {
	_, err := c.Conn.Write([]byte(m.ToSIP() + "\r"))
	return err
}

// NewPool builds a transport.ConnPool of SIP2 connections to addr.
// Get()/Put() on the returned pool hand out *transport.PoolConn;
// callers wrap PoolConn.Conn with NewConn to read/write SIP2 messages.
// Client (client.go) is the real caller: each Transact call is exactly
// one borrow/use/return cycle.
func NewPool(addr string, maxConns int, dialTimeout time.Duration) *transport.ConnPool {
	return transport.NewConnPool(addr, maxConns, func() (net.Conn, error) {
		return net.DialTimeout("tcp", addr, dialTimeout)
	})
}
