// Client-side Z39.50 transport: a single TCP connection multiplexing
// concurrent Init/Search/Present exchanges by frame sequence number: a
// recvLoop hands each response frame to the pending channel registered
// under its seq. Raw BER PDU bytes are framed by protocol.Header (see
// protocol/protocol.go) instead of a JSON/binary RPC payload.
package z3950

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/kcls/opensrf-go/protocol"
)

// Client manages one multiplexed connection to a Z39.50 target.
type Client struct {
	conn    net.Conn
	seq     uint32
	pending sync.Map // map[uint32]chan frameResult
	sending sync.Mutex
}

type frameResult struct {
	pdu any
	err error
}

// Dial opens a TCP connection to addr and starts the receive loop.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn}
	go c.recvLoop()
	return c, nil
}

// send frames pdu's encoded bytes and returns a channel delivering the
// correlated response PDU.
func (c *Client) send(pdu interface{ Encode() []byte }) (<-chan frameResult, error) {
	c.sending.Lock()
	defer c.sending.Unlock()

	c.seq++
	seq := c.seq

	body := pdu.Encode()
	header := protocol.Header{
		CodecType: protocol.CodecTypeBER,
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
		BodyLen:   uint32(len(body)),
	}

	ch := make(chan frameResult, 1)
	c.pending.Store(seq, ch)

	if err := protocol.Encode(c.conn, &header, body); err != nil {
		c.pending.Delete(seq)
		return nil, err
	}
	return ch, nil
}

func (c *Client) recvLoop() {
	for {
		header, body, err := protocol.Decode(c.conn)
		if err != nil {
			c.closeAllPending(err)
			return
		}

		pdu, _, decodeErr := DecodePDU(body)

		if ch, ok := c.pending.LoadAndDelete(header.Seq); ok {
			ch.(chan frameResult) <- frameResult{pdu: pdu, err: decodeErr}
		}
	}
}

func (c *Client) closeAllPending(err error) {
	c.pending.Range(func(key, value any) bool {
		value.(chan frameResult) <- frameResult{err: fmt.Errorf("z3950: connection closed: %w", err)}
		return true
	})
	c.pending.Clear()
}

// Init sends an InitializeRequest and waits for the response.
func (c *Client) Init(req InitializeRequest) (InitializeResponse, error) {
	ch, err := c.send(req)
	if err != nil {
		return InitializeResponse{}, err
	}
	res := <-ch
	if res.err != nil {
		return InitializeResponse{}, res.err
	}
	resp, ok := res.pdu.(InitializeResponse)
	if !ok {
		return InitializeResponse{}, fmt.Errorf("z3950: expected InitializeResponse, got %T", res.pdu)
	}
	return resp, nil
}

// Search sends a SearchRequest and waits for the response.
func (c *Client) Search(req SearchRequest) (SearchResponse, error) {
	ch, err := c.send(req)
	if err != nil {
		return SearchResponse{}, err
	}
	res := <-ch
	if res.err != nil {
		return SearchResponse{}, res.err
	}
	resp, ok := res.pdu.(SearchResponse)
	if !ok {
		return SearchResponse{}, fmt.Errorf("z3950: expected SearchResponse, got %T", res.pdu)
	}
	return resp, nil
}

// Present sends a PresentRequest and waits for the response.
func (c *Client) Present(req PresentRequest) (PresentResponse, error) {
	ch, err := c.send(req)
	if err != nil {
		return PresentResponse{}, err
	}
	res := <-ch
	if res.err != nil {
		return PresentResponse{}, res.err
	}
	resp, ok := res.pdu.(PresentResponse)
	if !ok {
		return PresentResponse{}, fmt.Errorf("z3950: expected PresentResponse, got %T", res.pdu)
	}
	return resp, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
