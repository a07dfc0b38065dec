// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-connect-worker holds a persistent connection to the connect
// gateway and runs the steps the gateway routes to it against local
// applications.
//
// Data flow:
//
//	gateway → executor request → ack → local app (POST ?fnId=) → reply → buffer → gateway
//	gateway → reply ack → buffer delete
//	buffer (older than flush.ttl) → flush poller → POST /v0/connect/flush
//
// Every reply is added to the eviction buffer before it is written to
// the gateway. The gateway acknowledges replies it received; the ack
// deletes the buffered copy. A reply whose ack never arrives (the
// connection dropped mid-write, the gateway restarted) is picked up by
// the flush poller once it is older than flush.ttl and posted to the
// API's flush endpoint. Each reply gets one flush attempt.
//
// The buffer is bounded by buffer.capacity_bytes. When it is full, the
// oldest replies are evicted to admit new ones; a reply larger than the
// whole buffer is sent but not buffered.
//
// A request whose reply is already buffered (the gateway redelivered it
// after a reconnect) is answered from the buffer without running the
// step again.
//
// The worker serves "status" and "dump" on its CBOR service socket and,
// with --metrics-address, Prometheus metrics over HTTP.
package main
