// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workerapi defines the request and response types of the
// connect worker's service socket. The worker and the bureau-connect
// CLI both import it so the wire format is defined once.
package workerapi

// Socket actions.
const (
	ActionStatus = "status"
	ActionDump   = "dump"
)

// Status is the response to ActionStatus.
type Status struct {
	UptimeSeconds float64 `json:"uptime_seconds" cbor:"uptime_seconds"`
	Version       string  `json:"version" cbor:"version"`

	// Gateway session.
	Connected   bool   `json:"connected" cbor:"connected"`
	Sessions    uint64 `json:"sessions" cbor:"sessions"`
	Executed    uint64 `json:"executed" cbor:"executed"`
	Redelivered uint64 `json:"redelivered" cbor:"redelivered"`
	Unbuffered  uint64 `json:"unbuffered" cbor:"unbuffered"`

	// Reply buffer.
	BufferEntries  int    `json:"buffer_entries" cbor:"buffer_entries"`
	BufferBytes    int    `json:"buffer_bytes" cbor:"buffer_bytes"`
	BufferCapacity int    `json:"buffer_capacity" cbor:"buffer_capacity"`
	BufferEvicted  uint64 `json:"buffer_evicted" cbor:"buffer_evicted"`
	BufferRejected uint64 `json:"buffer_rejected" cbor:"buffer_rejected"`

	// Flush poller.
	Flushed       uint64 `json:"flushed" cbor:"flushed"`
	FlushFailures uint64 `json:"flush_failures" cbor:"flush_failures"`
}

// DumpRequest is the request body of ActionDump.
type DumpRequest struct {
	// Limit caps the number of replies returned, oldest first. Zero
	// means all.
	Limit int `json:"limit,omitempty" cbor:"limit,omitempty"`
}

// BufferedReply describes one buffered reply. The payload itself never
// leaves the worker; Digest identifies it.
type BufferedReply struct {
	RequestID  string  `json:"request_id" cbor:"request_id"`
	Bytes      int     `json:"bytes" cbor:"bytes"`
	AgeSeconds float64 `json:"age_seconds" cbor:"age_seconds"`
	Digest     string  `json:"digest" cbor:"digest"`
}

// DumpResponse is the response to ActionDump.
type DumpResponse struct {
	Replies []BufferedReply `json:"replies" cbor:"replies"`
}
