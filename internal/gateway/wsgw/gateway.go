// Package wsgw implements the WebSocket gateway: one multiplexed
// socket carries many concurrent sessions as classified-JSON envelopes,
// relayed onto the bus on the caller's behalf. The per-connection
// three-goroutine shape (Inbound/Outbound/Main unified by a single
// channel) keeps socket I/O and bus I/O on separate goroutines so
// neither blocks the other; the gorilla/websocket upgrade and
// ping/pong housekeeping is grounded on the chat-server pattern seen
// across the example corpus (see DESIGN.md).
package wsgw

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/bus"
	"github.com/kcls/opensrf-go/internal/logging"
	"github.com/kcls/opensrf-go/internal/osrfmsg"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second

	// wakeupPeriod is how often Main re-checks for shutdown between
	// socket/bus traffic via its own Wakeup channel.
	wakeupPeriod = 2 * time.Second

	// MaxThreadSize bounds how many distinct threads one connection may
	// have outstanding worker-address mappings for, guarding memory
	// against a client that opens unbounded concurrent conversations.
	MaxThreadSize = 256

	// MaxMessageSize bounds a single inbound frame.
	MaxMessageSize = 10 * 1024 * 1024
)

// BusFactory opens a fresh Bus connection on the given domain, used to
// give every relayed connection its own receive loop rather than
// sharing one client's backlog across unrelated browser tabs.
type BusFactory func(domain string) (*bus.Bus, error)

// Gateway upgrades HTTP connections to WebSocket and relays envelopes.
type Gateway struct {
	upgrader   websocket.Upgrader
	newBus     BusFactory
	maxClients int
	sem        chan struct{}

	shutdownCtx context.Context
	shutdown    context.CancelFunc
}

// New builds a Gateway. newBus is called once per inbound WS connection
// to obtain the bus.Bus it relays on.
func New(newBus BusFactory, maxClients int) *Gateway {
	if maxClients <= 0 {
		maxClients = 512
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		upgrader:    websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		newBus:      newBus,
		maxClients:  maxClients,
		sem:         make(chan struct{}, maxClients),
		shutdownCtx: ctx,
		shutdown:    cancel,
	}
}

// Shutdown cancels every live connection's context, driving each
// through a Close handshake: Main sends Close toward the client to
// unblock its blocked Inbound read.
func (g *Gateway) Shutdown() {
	g.shutdown()
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case g.sem <- struct{}{}:
	default:
		http.Error(w, "gateway at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		<-g.sem
		logging.Logger().Warnw("websocket upgrade failed", "err", err)
		return
	}

	b, err := g.newBus("")
	if err != nil {
		<-g.sem
		logging.Logger().Errorw("websocket gateway failed to open bus connection", "err", err)
		conn.Close()
		return
	}

	c := &wsConn{
		conn:          conn,
		bus:           b,
		events:        make(chan wsEvent, 64),
		threadWorkers: make(map[string]string),
	}
	go func() {
		defer func() { <-g.sem }()
		c.run(r.Context(), g.shutdownCtx)
	}()
}

// wireEnvelope is the JSON shape exchanged with the browser:
// `{thread, service?, osrf_msg: [message]}` inbound,
// `{thread, osrf_msg: [message], transport_error?: true}` outbound.
type wireEnvelope struct {
	Thread         string            `json:"thread"`
	Service        string            `json:"service,omitempty"`
	Body           []osrfmsg.Message `json:"osrf_msg"`
	TransportError bool              `json:"transport_error,omitempty"`
}

// eventKind discriminates the variants carried on wsConn.events:
// Inbound(frame), Outbound(envelope), and Wakeup, plus InboundClosed
// once the socket read fails.
type eventKind int

const (
	eventInbound eventKind = iota
	eventOutbound
	eventWakeup
	eventInboundClosed
)

type wsEvent struct {
	kind  eventKind
	frame []byte
	env   *osrfmsg.Envelope
}

// wsConn is one browser connection multiplexing many session threads
// over a single bus.Bus client address. Three goroutines — Inbound,
// Outbound, and the Main loop below — communicate only through events,
// so Main is the sole writer to both the socket and threadWorkers.
type wsConn struct {
	conn *websocket.Conn
	bus  *bus.Bus

	writeMu sync.Mutex
	events  chan wsEvent

	// threadWorkers caches, per thread, where its next message goes:
	// the service address on first use, replaced by the replying
	// worker's address once a reply arrives, so later messages on the
	// same thread go straight to that worker. Bounded by MaxThreadSize
	// with FIFO eviction of the oldest thread once full.
	threadWorkers map[string]string
	threadOrder   []string
}

func (c *wsConn) run(reqCtx, shutdownCtx context.Context) {
	ctx, cancel := context.WithCancel(reqCtx)
	defer cancel()
	defer c.conn.Close()
	defer c.bus.Close()

	go func() {
		select {
		case <-shutdownCtx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	// Ping→Pong from a peer that pings us is answered by the
	// gorilla/websocket library itself before SetPingHandler is even
	// consulted; browsers reply to our Pings the same way, so neither
	// direction ever touches the bus.

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.inboundLoop(ctx) }()
	go func() { defer wg.Done(); c.outboundLoop(ctx) }()
	go c.wakeupLoop(ctx)

	c.mainLoop(ctx)

	cancel()
	wg.Wait()
}

// inboundLoop reads frames from the socket and forwards them on the
// shared channel. It is the one goroutine blocked in conn.ReadMessage,
// so Main must close the connection to unblock it during shutdown.
func (c *wsConn) inboundLoop(ctx context.Context) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case c.events <- wsEvent{kind: eventInboundClosed}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case c.events <- wsEvent{kind: eventInbound, frame: raw}:
		case <-ctx.Done():
			return
		}
	}
}

// outboundLoop owns the only Recv call against this connection's Bus
// and forwards replies onto the shared channel, tagged with their
// originating thread via the osrfmsg envelope itself.
func (c *wsConn) outboundLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := c.bus.Recv(ctx, 1)
		if err != nil {
			logging.Logger().Warnw("websocket gateway bus recv error", "err", err)
			return
		}
		if env == nil {
			continue
		}

		select {
		case c.events <- wsEvent{kind: eventOutbound, env: env}:
		case <-ctx.Done():
			return
		}
	}
}

// wakeupLoop periodically nudges mainLoop so it notices a cancelled
// context even when neither Inbound nor Outbound has anything to
// deliver.
func (c *wsConn) wakeupLoop(ctx context.Context) {
	t := time.NewTicker(wakeupPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			select {
			case c.events <- wsEvent{kind: eventWakeup}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// mainLoop is the only goroutine that touches the socket for writes or
// threadWorkers: every Inbound/Outbound/Wakeup event funnels through
// here, bridging inbound→bus and outbound→socket.
func (c *wsConn) mainLoop(ctx context.Context) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.closeTowardClient()
			return

		case <-pingTicker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}

		case ev := <-c.events:
			switch ev.kind {
			case eventInbound:
				c.handleInboundFrame(ctx, ev.frame)

			case eventOutbound:
				if _, ok := c.threadWorkers[ev.env.Thread]; ok && ev.env.From != "" {
					c.threadWorkers[ev.env.Thread] = ev.env.From
				}
				c.writeEnvelope(wireEnvelope{Thread: ev.env.Thread, Body: ev.env.Body})

			case eventWakeup:
				if ctx.Err() != nil {
					c.closeTowardClient()
					return
				}

			case eventInboundClosed:
				// Client disconnected or ReadMessage errored; no
				// reply is possible, so just drain out.
				return
			}
		}
	}
}

// handleInboundFrame parses one browser-originated frame and relays it
// onto the bus, sending to the thread's cached address or, on a
// thread's first frame, caching and using the named service's address.
func (c *wsConn) handleInboundFrame(ctx context.Context, raw []byte) {
	var in wireEnvelope
	if err := json.Unmarshal(raw, &in); err != nil {
		c.writeError("", "malformed envelope: "+err.Error())
		return
	}
	if in.Thread == "" {
		c.writeError("", "envelope missing thread")
		return
	}

	to, ok := c.threadWorkers[in.Thread]
	if !ok {
		if in.Service == "" {
			c.writeError(in.Thread, "first message on a thread must name a service")
			return
		}
		to = addr.ForService("router", c.bus.Address().Domain, in.Service).String()
		c.cacheThreadWorker(in.Thread, to)
	}

	env := osrfmsg.NewEnvelope(to, c.bus.Address().String(), in.Thread)
	env.Body = in.Body
	if err := c.bus.Send(ctx, env); err != nil {
		c.writeError(in.Thread, "send failed: "+err.Error())
	}
}

// cacheThreadWorker records thread->worker, evicting the
// oldest-cached thread once MaxThreadSize is reached.
func (c *wsConn) cacheThreadWorker(thread, to string) {
	if _, exists := c.threadWorkers[thread]; exists {
		return
	}
	if len(c.threadOrder) >= MaxThreadSize {
		oldest := c.threadOrder[0]
		c.threadOrder = c.threadOrder[1:]
		delete(c.threadWorkers, oldest)
	}
	c.threadWorkers[thread] = to
	c.threadOrder = append(c.threadOrder, thread)
}

// closeTowardClient sends a Close control frame toward the browser so
// its ReadMessage call in inboundLoop unblocks with an error: this is
// how the main loop sends Close toward the client to unblock Inbound.
func (c *wsConn) closeTowardClient() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
}

func (c *wsConn) writeEnvelope(e wireEnvelope) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(e); err != nil {
		logging.Logger().Warnw("websocket gateway write failed", "err", err)
	}
}

func (c *wsConn) writeError(thread, msg string) {
	c.writeEnvelope(wireEnvelope{
		Thread:         thread,
		Body:           []osrfmsg.Message{osrfmsg.NewStatus(0, osrfmsg.StatusBadRequest, msg, "")},
		TransportError: true,
	})
}

// RouterAddr is a convenience for building the default router address a
// WS-originated Connect/Request would target, mirroring how the HTTP
// gateway resolves service addresses.
func RouterAddr(username, domain string) string {
	return addr.ForRouter(username, domain).String()
}
