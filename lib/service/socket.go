// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/bureau-connect/lib/codec"
)

// ActionFunc processes a socket request for one action. raw is the
// full CBOR request, including the "action" field; the handler decodes
// whatever other fields it needs from it.
//
// A nil result produces {ok: true}. A non-nil result is marshaled into
// the response's data field. A non-nil error produces
// {ok: false, error: err.Error()}.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the envelope of every socket response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// readTimeout is how long the server waits for a client to send its
// request after connecting.
const readTimeout = 30 * time.Second

// writeTimeout bounds writing the response.
const writeTimeout = 10 * time.Second

// maxRequestSize caps a single request. Worker actions take at most a
// few scalar fields.
const maxRequestSize = 64 * 1024

// SocketServer serves the action protocol on a Unix socket. Register
// actions with Handle before calling Serve.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	ready chan struct{}

	// active tracks in-flight connections so Serve can drain them
	// before returning.
	active sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Handle registers handler for action. Panics on a duplicate action.
// Not safe to call after Serve has started.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Ready is closed once the socket is listening.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight requests to finish. A stale socket file at the path is
// replaced, and the socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	return nil
}

// handleConnection runs one request/response cycle.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting, so one Decode reads exactly one request.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeResponse(conn, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeResponse(conn, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if header.Action == "" {
		s.writeResponse(conn, Response{Error: "missing required field: action"})
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeResponse(conn, Response{Error: fmt.Sprintf("unknown action %q", header.Action)})
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		s.writeResponse(conn, Response{Error: err.Error()})
		return
	}

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeResponse(conn, Response{Error: fmt.Sprintf("internal: marshaling response: %v", err)})
			return
		}
		response.Data = data
	}
	s.writeResponse(conn, response)
}

// writeResponse encodes response to conn. Write failures are logged at
// debug level; the connection is closing either way.
func (s *SocketServer) writeResponse(conn net.Conn, response Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write response", "ok", response.OK, "error", err)
	}
}
