package sip2

import (
	"net"
	"testing"
	"time"
)

// fakeACS accepts connections and replies to every SC Status request
// (message 99) with a canned ACS Status response (message 98).
func fakeACS(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	resp, err := FromFixedValues("98", []string{
		"Y", "Y", "Y", "N", "Y", "N", "030", "003", "20260101    120000", "2.00",
	})
	if err != nil {
		t.Fatalf("FromFixedValues: %v", err)
	}

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go func(nc net.Conn) {
				defer nc.Close()
				conn := NewConn(nc)
				for {
					if _, err := conn.ReadMessage(time.Time{}); err != nil {
						return
					}
					if err := conn.WriteMessage(resp); err != nil {
						return
					}
				}
			}(nc)
		}
	}()

	return ln.Addr().String()
}

func TestClientTransactRoundTrip(t *testing.T) {
	addr := fakeACS(t)
	cl := NewClient(addr, 2, time.Second, time.Second)
	defer cl.Close()

	req, err := FromFixedValues("99", []string{"0", "080", "2.00"})
	if err != nil {
		t.Fatalf("FromFixedValues: %v", err)
	}

	resp, err := cl.Transact(req)
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if resp.Spec.Code != "98" {
		t.Fatalf("response code = %q, want 98", resp.Spec.Code)
	}
}

func TestClientTransactReusesConnection(t *testing.T) {
	addr := fakeACS(t)
	cl := NewClient(addr, 1, time.Second, time.Second)
	defer cl.Close()

	req, err := FromFixedValues("99", []string{"0", "080", "2.00"})
	if err != nil {
		t.Fatalf("FromFixedValues: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := cl.Transact(req); err != nil {
			t.Fatalf("Transact #%d: %v", i, err)
		}
	}
}

func TestClientTransactFailsWithNoListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // nothing listening on addr now

	cl := NewClient(addr, 1, 200*time.Millisecond, time.Second)
	defer cl.Close()

	req, err := FromFixedValues("99", []string{"0", "080", "2.00"})
	if err != nil {
		t.Fatalf("FromFixedValues: %v", err)
	}
	if _, err := cl.Transact(req); err == nil {
		t.Fatal("expected an error dialing a closed listener")
	}
}
