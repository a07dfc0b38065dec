// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/bureau-connect/lib/config"
	"github.com/bureau-foundation/bureau-connect/lib/connectwire"
	"github.com/bureau-foundation/bureau-connect/lib/netutil"
)

// writeTimeout bounds a single frame write to the gateway.
const writeTimeout = 10 * time.Second

// errGatewayClosed reports that the gateway ended the session cleanly.
var errGatewayClosed = errors.New("gateway closed the connection")

// gatewayDialer returns a dial function for the configured gateway.
func gatewayDialer(gateway config.GatewayConfig) func(ctx context.Context) (net.Conn, error) {
	return func(ctx context.Context) (net.Conn, error) {
		dialer := net.Dialer{Timeout: 10 * time.Second}
		return dialer.DialContext(ctx, gateway.Network, gateway.Address)
	}
}

// gatewaySession is one connection to the gateway. Frames are written
// from the heartbeat loop and from every in-flight execution, so
// writes are serialized.
type gatewaySession struct {
	mu   sync.Mutex
	conn net.Conn
}

// send writes one frame. Safe for concurrent use. The deadline is
// enforced by the OS on the socket, so it is wall-clock time and not
// the worker's Clock.
func (s *gatewaySession) send(message connectwire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	return connectwire.WriteFrame(s.conn, message)
}

// runGateway keeps a session open until ctx is cancelled. A failed
// dial backs off exponentially from ReconnectInitial up to
// ReconnectMax; a session that connected resets the backoff. It
// returns nil on cancellation after in-flight executions finish.
func (w *Worker) runGateway(ctx context.Context) error {
	defer w.inflight.Wait()

	backoff := w.gateway.ReconnectInitial
	for {
		conn, err := w.dial(ctx)
		if err == nil {
			backoff = w.gateway.ReconnectInitial
			err = w.serveSession(ctx, conn)
		}
		if ctx.Err() != nil {
			return nil
		}
		level := slog.LevelWarn
		if errors.Is(err, errGatewayClosed) || netutil.IsExpectedCloseError(err) {
			level = slog.LevelInfo
		}
		w.logger.Log(ctx, level, "gateway connection lost, reconnecting",
			"error", err,
			"backoff", backoff,
			"buffered_replies", w.buffer.Len(),
		)

		select {
		case <-w.clock.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff *= 2
		if backoff > w.gateway.ReconnectMax {
			backoff = w.gateway.ReconnectMax
		}
	}
}

// serveSession reads frames from conn until it fails or ctx is
// cancelled, and closes conn before returning.
func (w *Worker) serveSession(ctx context.Context, conn net.Conn) error {
	sessionContext, cancel := context.WithCancel(ctx)
	defer cancel()

	session := &gatewaySession{conn: conn}
	w.sessions.Add(1)
	w.connected.Store(true)
	defer w.connected.Store(false)
	w.logger.Info("connected to gateway", "remote", conn.RemoteAddr().String())

	// Closing the connection is what unblocks ReadFrame on
	// cancellation.
	var background sync.WaitGroup
	background.Add(3)
	go func() {
		defer background.Done()
		<-sessionContext.Done()
		conn.Close()
	}()
	go func() {
		defer background.Done()
		w.runHeartbeat(sessionContext, session)
	}()
	go func() {
		defer background.Done()
		w.runLeaseExtender(sessionContext, session)
	}()
	defer background.Wait()
	defer cancel()

	reader := bufio.NewReader(conn)
	for {
		message, err := connectwire.ReadFrame(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errGatewayClosed
			}
			return fmt.Errorf("reading from gateway: %w", err)
		}
		// Executions get the worker's context, not the session's: a
		// dropped connection must not abandon a step mid-run.
		w.handleMessage(ctx, session, message)
	}
}

// runHeartbeat sends a heartbeat every HeartbeatInterval until ctx is
// cancelled. A failed write closes the session.
func (w *Worker) runHeartbeat(ctx context.Context, session *gatewaySession) {
	ticker := w.clock.NewTicker(w.gateway.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := session.send(connectwire.Message{Kind: connectwire.KindHeartbeat}); err != nil {
				w.logger.Warn("heartbeat failed, closing session", "error", err)
				session.conn.Close()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
