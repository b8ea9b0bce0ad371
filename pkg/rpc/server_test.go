package rpc

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/akutz/memconn"
	"github.com/coder/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// listenAndServe starts the server on an in-memory network (no real port,
// no filesystem socket) and returns a dial function for an HTTP client to
// reach it, exercising ServeHTTP's full accept loop end to end.
func listenAndServe(t *testing.T, s *Server) func(ctx context.Context, network, addr string) (net.Conn, error) {
	t.Helper()

	name := "memconn-rpc-" + t.Name()
	ln, err := memconn.Listen("memu", name)
	if err != nil {
		t.Fatalf("memconn.Listen: %v", err)
	}

	httpServer := &http.Server{Handler: s}
	go httpServer.Serve(ln)
	t.Cleanup(func() {
		httpServer.Close()
	})

	return func(ctx context.Context, _, _ string) (net.Conn, error) {
		return memconn.Dial("memu", name)
	}
}

func TestServerServesRPCOverInMemoryTransport(t *testing.T) {
	s := newTestServer()
	dial := listenAndServe(t, s)

	client := &http.Client{Transport: &http.Transport{DialContext: dial}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://koharu.local/rpc", &websocket.DialOptions{HTTPClient: client})
	if err != nil {
		t.Fatalf("websocket.Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	req, err := msgpack.Marshal(incoming{ID: 1, Method: "appVersion"})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	var resp outgoing
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Type != "res" || resp.ID != 1 {
		t.Fatalf("unexpected response frame: %+v", resp)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error in response: %s", resp.Error)
	}
	if resp.Result != "1.2.3" {
		t.Fatalf("got version %v, want 1.2.3", resp.Result)
	}
}

func TestServerRejectsUnknownMethodOverInMemoryTransport(t *testing.T) {
	s := newTestServer()
	dial := listenAndServe(t, s)

	client := &http.Client{Transport: &http.Transport{DialContext: dial}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://koharu.local/rpc", &websocket.DialOptions{HTTPClient: client})
	if err != nil {
		t.Fatalf("websocket.Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	req, _ := msgpack.Marshal(incoming{ID: 7, Method: "NotARealMethod"})
	if err := conn.Write(ctx, websocket.MessageBinary, req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp outgoing
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected a non-empty error for an unknown method")
	}
}
