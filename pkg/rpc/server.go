// Package rpc implements the command plane: a WebSocket transport carrying
// MessagePack-framed request/response/notification frames over a closed
// method registry.
package rpc

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/koharu-go/koharu/pkg/assets"
	"github.com/koharu-go/koharu/pkg/ops"
	"github.com/koharu-go/koharu/pkg/pipeline"
)

const (
	maxFrameBytes  = 1 << 30 // 1 GiB
	requestTimeout = 300 * time.Second
)

// NewServer builds a dispatcher bound to resources and runner.
func NewServer(resources ops.Resources, runner *pipeline.Runner) *Server {
	return &Server{Resources: resources, Runner: runner}
}

// ServeHTTP upgrades the connection to a WebSocket and serves frames on it
// until the client disconnects, mirroring the reference ws_handler /
// handle_socket pair: one connection, one accept, goroutines for the two
// notification forwarders plus the request loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		slog.Error("rpc: websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)
	s.handleSocket(r.Context(), conn)
}

func (s *Server) handleSocket(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeMu sync.Mutex
	write := func(msg outgoing) {
		data, err := msgpack.Marshal(msg)
		if err != nil {
			slog.Error("rpc: encode frame failed", "error", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
			slog.Debug("rpc: write failed", "error", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go s.forwardProgress(ctx, &wg, write)
	go s.forwardDownloads(ctx, &wg, write)

	defer func() {
		cancel()
		wg.Wait()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var frame incoming
		if err := msgpack.Unmarshal(data, &frame); err != nil {
			write(errResponse(0, "Decode error: "+err.Error()))
			continue
		}

		go s.handleRequest(ctx, frame, write)
	}
}

func (s *Server) handleRequest(ctx context.Context, frame incoming, write func(outgoing)) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	method, err := ParseMethod(frame.Method)
	if err != nil {
		write(errResponse(frame.ID, err.Error()))
		return
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.dispatch(reqCtx, method, frame.Params)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			write(errResponse(frame.ID, o.err.Error()))
			return
		}
		write(okResponse(frame.ID, o.result))
	case <-reqCtx.Done():
		write(errResponse(frame.ID, "Request timed out"))
	}
}

func (s *Server) forwardProgress(ctx context.Context, wg *sync.WaitGroup, write func(outgoing)) {
	defer wg.Done()
	ch, unsubscribe := pipeline.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ch:
			if !ok {
				return
			}
			write(notification("process_progress", p))
		}
	}
}

func (s *Server) forwardDownloads(ctx context.Context, wg *sync.WaitGroup, write func(outgoing)) {
	defer wg.Done()
	ch, unsubscribe := assets.Downloads.Subscribe(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ch:
			if !ok {
				return
			}
			write(notification("download_progress", p))
		}
	}
}
