// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/bureau-connect/lib/clock"
	"github.com/bureau-foundation/bureau-connect/lib/config"
	"github.com/bureau-foundation/bureau-connect/lib/connectwire"
	"github.com/bureau-foundation/bureau-connect/lib/evictbuffer"
	"github.com/bureau-foundation/bureau-connect/lib/flusher"
	"github.com/bureau-foundation/bureau-connect/lib/netutil"
)

// workerConfig carries the worker's collaborators. Everything that
// touches the network or time is injected so tests can substitute
// net.Pipe, httptest, and a fake clock.
type workerConfig struct {
	Gateway  config.GatewayConfig
	Apps     []config.AppConfig
	Buffer   *evictbuffer.Buffer
	Flusher  *flusher.Flusher
	Executor Executor
	Dial     func(ctx context.Context) (net.Conn, error)
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Worker holds the runtime state shared by the gateway session, the
// socket handlers, and in-flight executions.
type Worker struct {
	gateway  config.GatewayConfig
	apps     map[string]config.AppConfig
	buffer   *evictbuffer.Buffer
	flusher  *flusher.Flusher
	executor Executor
	dial     func(ctx context.Context) (net.Conn, error)
	clock    clock.Clock
	logger   *slog.Logger

	startedAt time.Time

	// Read by the status handler while the session goroutine writes.
	connected   atomic.Bool
	sessions    atomic.Uint64
	executed    atomic.Uint64
	redelivered atomic.Uint64
	unbuffered  atomic.Uint64

	// inflight tracks execution goroutines. They outlive the session
	// that started them: a reply whose connection dropped is still
	// buffered for the flusher.
	inflight sync.WaitGroup

	leasesMu sync.Mutex
	leases   map[string]*heldLease
}

func newWorker(cfg workerConfig) *Worker {
	apps := make(map[string]config.AppConfig, len(cfg.Apps))
	for _, app := range cfg.Apps {
		apps[app.Name] = app
	}
	return &Worker{
		gateway:   cfg.Gateway,
		apps:      apps,
		buffer:    cfg.Buffer,
		flusher:   cfg.Flusher,
		executor:  cfg.Executor,
		dial:      cfg.Dial,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		startedAt: cfg.Clock.Now(),
		leases:    make(map[string]*heldLease),
	}
}

// handleMessage dispatches one frame read from the gateway.
func (w *Worker) handleMessage(ctx context.Context, session *gatewaySession, message connectwire.Message) {
	switch message.Kind {
	case connectwire.KindExecutorRequest:
		request, err := connectwire.UnmarshalExecutorRequest(message.Payload)
		if err != nil {
			w.logger.Warn("dropping malformed executor request", "error", err)
			return
		}
		w.inflight.Add(1)
		go func() {
			defer w.inflight.Done()
			w.handleExecutorRequest(ctx, session, request)
		}()

	case connectwire.KindWorkerReplyAck:
		ack, err := connectwire.UnmarshalReplyAck(message.Payload)
		if err != nil {
			w.logger.Warn("dropping malformed reply ack", "error", err)
			return
		}
		w.handleReplyAck(ack)

	case connectwire.KindWorkerRequestExtendLeaseAck:
		ack, err := connectwire.UnmarshalExtendLeaseAck(message.Payload)
		if err != nil {
			w.logger.Warn("dropping malformed lease extension ack", "error", err)
			return
		}
		w.handleExtendLeaseAck(ack)

	case connectwire.KindHeartbeat:

	default:
		w.logger.Warn("ignoring unexpected message from gateway", "kind", message.Kind)
	}
}

// handleExecutorRequest acks the request, runs it (or reuses a
// buffered reply), buffers the reply, and sends it.
func (w *Worker) handleExecutorRequest(ctx context.Context, session *gatewaySession, request connectwire.ExecutorRequest) {
	logger := w.logger.With(
		"request_id", request.RequestID,
		"app_name", request.AppName,
		"function_slug", request.FunctionSlug,
		"step_id", request.StepID,
	)

	app, ok := w.apps[request.AppName]
	if !ok {
		logger.Error("no app configured for executor request")
		return
	}

	ack := connectwire.RequestAck{
		RequestID:    request.RequestID,
		AppName:      request.AppName,
		FunctionSlug: request.FunctionSlug,
		StepID:       request.StepID,
	}
	if err := session.send(connectwire.Message{Kind: connectwire.KindWorkerRequestAck, Payload: ack.Marshal()}); err != nil {
		logger.Warn("failed to ack executor request", "error", err)
		return
	}

	if encoded, ok := w.buffer.Get(request.RequestID); ok {
		w.redelivered.Add(1)
		logger.Info("request already answered, resending buffered reply", "bytes", len(encoded))
		w.sendReply(session, logger, encoded)
		return
	}

	executionContext, cancel := context.WithCancel(ctx)
	defer cancel()
	held := w.trackLease(request, cancel)
	reply := w.executor.Execute(executionContext, app, request)
	w.executed.Add(1)
	if lost := w.releaseLease(held); lost {
		// The gateway has handed the request to someone else.
		logger.Info("lease lost during execution, dropping reply")
		return
	}
	encoded := reply.Marshal()

	// Buffer before sending: if the write or the ack is lost, the
	// flusher still has the reply.
	if !w.buffer.Add(request.RequestID, encoded) {
		w.unbuffered.Add(1)
		logger.Warn("reply too large to buffer", "bytes", len(encoded), "capacity", w.buffer.Capacity())
	}
	logger.Debug("step executed", "status", reply.Status, "bytes", len(encoded))
	w.sendReply(session, logger, encoded)
}

func (w *Worker) sendReply(session *gatewaySession, logger *slog.Logger, encoded []byte) {
	err := session.send(connectwire.Message{Kind: connectwire.KindWorkerReply, Payload: encoded})
	switch {
	case err == nil:
	case netutil.IsExpectedCloseError(err):
		logger.Info("gateway gone before reply was sent, leaving it for the flusher")
	default:
		logger.Warn("failed to send reply, leaving it for the flusher", "error", err)
	}
}

// handleReplyAck drops an acknowledged reply from the buffer.
func (w *Worker) handleReplyAck(ack connectwire.ReplyAck) {
	if !w.buffer.Delete(ack.RequestID) {
		// Already flushed or evicted.
		w.logger.Debug("ack for reply not in buffer", "request_id", ack.RequestID)
		return
	}
	w.logger.Debug("reply acknowledged", "request_id", ack.RequestID)
}
