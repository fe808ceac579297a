package wsgw

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"

	"github.com/kcls/opensrf-go/internal/addr"
	"github.com/kcls/opensrf-go/internal/bus"
	"github.com/kcls/opensrf-go/internal/osrfmsg"
)

func newTestGateway(t *testing.T) (*Gateway, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("bad miniredis port: %v", err)
	}

	gw := New(func(string) (*bus.Bus, error) {
		return bus.Connect(bus.ClientConfig{
			Username: "tester",
			Domain:   bus.Domain{Name: mr.Host(), Port: port},
		})
	}, 8)

	return gw, mr
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestRelaysInboundToBusAndBackToClient drives one thread end to end:
// a frame sent in by the WS client lands on the named service's
// well-known worker queue, and an envelope sent back to the gateway's
// own client address is relayed back out as a wireEnvelope.
func TestRelaysInboundToBusAndBackToClient(t *testing.T) {
	gw, _ := newTestGateway(t)
	srv := httptest.NewServer(gw)
	defer srv.Close()

	observer, err := gw.newBus("")
	if err != nil {
		t.Fatalf("newBus: %v", err)
	}
	defer observer.Close()

	conn := dialWS(t, srv)

	in := wireEnvelope{
		Thread:  "thread-1",
		Service: "opensrf.test",
		Body:    []osrfmsg.Message{osrfmsg.NewConnect(1)},
	}
	if err := conn.WriteJSON(in); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	serviceAddr := addr.ForService("router", observer.Address().Domain, "opensrf.test").String()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	env, err := observer.RecvFrom(ctx, 3, serviceAddr)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if env == nil {
		t.Fatal("expected the gateway to relay the frame onto the service queue")
	}
	if env.Thread != "thread-1" {
		t.Fatalf("Thread = %q, want thread-1", env.Thread)
	}
	if len(env.Body) != 1 || env.Body[0].Type != osrfmsg.TypeConnect {
		t.Fatalf("unexpected body: %+v", env.Body)
	}

	// Reply addressed at the gateway's client address (env.From)
	// should come back out over the WebSocket as a wireEnvelope.
	reply := osrfmsg.NewEnvelope(env.From, serviceAddr, "thread-1")
	reply.Body = []osrfmsg.Message{osrfmsg.NewStatus(1, osrfmsg.StatusOK, "OK", "")}
	if err := observer.Send(ctx, reply); err != nil {
		t.Fatalf("Send reply: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var out wireEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal reply: %v", err)
	}
	if out.Thread != "thread-1" {
		t.Fatalf("reply Thread = %q, want thread-1", out.Thread)
	}
	if len(out.Body) != 1 || out.Body[0].Type != osrfmsg.TypeStatus {
		t.Fatalf("unexpected reply body: %+v", out.Body)
	}
}

func TestCacheThreadWorkerEvictsOldest(t *testing.T) {
	c := &wsConn{threadWorkers: make(map[string]string)}
	for i := 0; i < MaxThreadSize+10; i++ {
		c.cacheThreadWorker("thread-"+strconv.Itoa(i), "addr-"+strconv.Itoa(i))
	}
	if len(c.threadWorkers) != MaxThreadSize {
		t.Fatalf("threadWorkers size = %d, want %d", len(c.threadWorkers), MaxThreadSize)
	}
	if _, ok := c.threadWorkers["thread-0"]; ok {
		t.Fatal("expected thread-0 to have been evicted")
	}
	if _, ok := c.threadWorkers["thread-9"]; ok {
		t.Fatal("expected thread-9 to have been evicted")
	}
	if _, ok := c.threadWorkers["thread-15"]; !ok {
		t.Fatal("expected thread-15 to still be cached")
	}
}

func TestWriteErrorSetsTransportErrorFlag(t *testing.T) {
	gw, _ := newTestGateway(t)
	srv := httptest.NewServer(gw)
	defer srv.Close()

	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var out wireEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal reply: %v", err)
	}
	if !out.TransportError {
		t.Fatalf("expected transport_error=true, got %+v", out)
	}
}

func TestGatewayShutdownClosesConnections(t *testing.T) {
	gw, _ := newTestGateway(t)
	srv := httptest.NewServer(gw)
	defer srv.Close()

	conn := dialWS(t, srv)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	gw.Shutdown()

	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected connection to be closed after Shutdown")
	}
}
