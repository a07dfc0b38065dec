// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/bureau-connect/lib/connectwire"
	"github.com/bureau-foundation/bureau-connect/lib/service"
	"github.com/bureau-foundation/bureau-connect/lib/testutil"
	"github.com/bureau-foundation/bureau-connect/lib/workerapi"
)

// startSocket serves the worker's actions until the test ends and
// returns a client for them.
func startSocket(t *testing.T, worker *Worker) *service.ServiceClient {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "worker.sock")
	server := service.NewSocketServer(socketPath, testLogger())
	worker.registerActions(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "waiting for socket server to stop")
	})
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "waiting for socket server")
	return service.NewServiceClient(socketPath)
}

func TestStatusAction(t *testing.T) {
	worker, fake := newTestWorker(t, &fakeExecutor{}, workerOptions{capacity: 10})
	client := startSocket(t, worker)

	worker.buffer.Add("a", []byte("12345"))
	worker.buffer.Add("b", []byte("123456")) // evicts a
	worker.buffer.Add("c", []byte("this is far too large"))
	worker.executed.Add(2)
	fake.Advance(90 * time.Second)

	var status workerapi.Status
	if err := client.Call(context.Background(), workerapi.ActionStatus, nil, &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds = %v, want 90", status.UptimeSeconds)
	}
	if status.BufferEntries != 1 || status.BufferBytes != 6 || status.BufferCapacity != 10 {
		t.Errorf("buffer = %d entries, %d/%d bytes; want 1, 6/10",
			status.BufferEntries, status.BufferBytes, status.BufferCapacity)
	}
	if status.BufferEvicted != 1 || status.BufferRejected != 1 {
		t.Errorf("evicted = %d, rejected = %d; want 1, 1", status.BufferEvicted, status.BufferRejected)
	}
	if status.Executed != 2 {
		t.Errorf("Executed = %d, want 2", status.Executed)
	}
	if status.Connected {
		t.Error("Connected = true with no session")
	}
}

func TestDumpAction(t *testing.T) {
	worker, fake := newTestWorker(t, &fakeExecutor{}, workerOptions{})
	client := startSocket(t, worker)

	worker.buffer.Add("first", []byte("one"))
	fake.Advance(3 * time.Second)
	worker.buffer.Add("second", []byte("two!"))
	fake.Advance(time.Second)

	var dump workerapi.DumpResponse
	if err := client.Call(context.Background(), workerapi.ActionDump, nil, &dump); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if len(dump.Replies) != 2 {
		t.Fatalf("dump returned %d replies, want 2", len(dump.Replies))
	}
	first, second := dump.Replies[0], dump.Replies[1]
	if first.RequestID != "first" || first.Bytes != 3 || first.AgeSeconds != 4 {
		t.Errorf("first = %+v", first)
	}
	if second.RequestID != "second" || second.Bytes != 4 || second.AgeSeconds != 1 {
		t.Errorf("second = %+v", second)
	}
	if first.Digest != connectwire.Digest([]byte("one")) {
		t.Errorf("first digest = %s", first.Digest)
	}

	var limited workerapi.DumpResponse
	if err := client.Call(context.Background(), workerapi.ActionDump, map[string]any{"limit": 1}, &limited); err != nil {
		t.Fatalf("dump with limit: %v", err)
	}
	if len(limited.Replies) != 1 || limited.Replies[0].RequestID != "first" {
		t.Errorf("limited dump = %+v, want only the oldest", limited.Replies)
	}

	if err := client.Call(context.Background(), workerapi.ActionDump, map[string]any{"limit": -1}, nil); err == nil {
		t.Error("negative limit accepted")
	}
}
