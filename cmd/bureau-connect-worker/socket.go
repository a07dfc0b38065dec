// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/bureau-foundation/bureau-connect/lib/codec"
	"github.com/bureau-foundation/bureau-connect/lib/connectwire"
	"github.com/bureau-foundation/bureau-connect/lib/service"
	"github.com/bureau-foundation/bureau-connect/lib/version"
	"github.com/bureau-foundation/bureau-connect/lib/workerapi"
)

// registerActions registers the worker's socket API. Both actions are
// read-only.
func (w *Worker) registerActions(server *service.SocketServer) {
	server.Handle(workerapi.ActionStatus, w.handleStatus)
	server.Handle(workerapi.ActionDump, w.handleDump)
}

func (w *Worker) handleStatus(_ context.Context, _ []byte) (any, error) {
	stats := w.buffer.Stats()
	flushStats := w.flusher.Stats()
	return &workerapi.Status{
		UptimeSeconds:  w.clock.Now().Sub(w.startedAt).Seconds(),
		Version:        version.Info(),
		Connected:      w.connected.Load(),
		Sessions:       w.sessions.Load(),
		Executed:       w.executed.Load(),
		Redelivered:    w.redelivered.Load(),
		Unbuffered:     w.unbuffered.Load(),
		BufferEntries:  stats.Entries,
		BufferBytes:    stats.Occupied,
		BufferCapacity: stats.Capacity,
		BufferEvicted:  stats.Evicted,
		BufferRejected: stats.Rejected,
		Flushed:        flushStats.Flushed,
		FlushFailures:  flushStats.Failed,
	}, nil
}

// handleDump lists buffered replies oldest first. Payloads stay in the
// worker; the digest identifies one without exposing it.
func (w *Worker) handleDump(_ context.Context, raw []byte) (any, error) {
	var request workerapi.DumpRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, errors.New("invalid dump request")
	}
	if request.Limit < 0 {
		return nil, errors.New("limit must not be negative")
	}

	// An age of zero selects every entry, oldest first.
	entries := w.buffer.OlderThan(0)
	if request.Limit > 0 && len(entries) > request.Limit {
		entries = entries[:request.Limit]
	}

	now := w.clock.Now()
	response := &workerapi.DumpResponse{Replies: make([]workerapi.BufferedReply, 0, len(entries))}
	for _, entry := range entries {
		response.Replies = append(response.Replies, workerapi.BufferedReply{
			RequestID:  entry.ID,
			Bytes:      len(entry.Data),
			AgeSeconds: now.Sub(entry.Timestamp).Seconds(),
			Digest:     connectwire.Digest(entry.Data),
		})
	}
	return response, nil
}
