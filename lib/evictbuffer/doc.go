// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package evictbuffer is a bounded, time-aware store of opaque byte
// payloads keyed by string id.
//
// The buffer holds at most Capacity bytes of payload. Admitting an
// entry that would overflow the ceiling evicts the oldest entries until
// it fits. "Oldest" means earliest admission: re-adding an id refreshes
// both its timestamp and its position, but reading it with Get does
// not. The order is FIFO with refresh-on-rewrite, not LRU.
//
// The worker uses one buffer to hold replies between sending them to
// the gateway and receiving the gateway's acknowledgement:
//
//	buffer, err := evictbuffer.New(500 << 20, evictbuffer.WithClock(clk))
//	buffer.Add(requestID, encodedReply)   // on send
//	buffer.Delete(requestID)              // on ack
//	for _, entry := range buffer.OlderThan(ttl) {
//		// never acked: deliver some other way, then
//		buffer.DeleteEntry(entry)           // unless re-added meanwhile
//	}
//
// Payloads are copied in on Add and copied out on Get and OlderThan.
// Callers never alias buffer memory, so a returned slice can be
// modified or retained freely.
//
// Every method is safe for concurrent use. A single mutex covers each
// call from start to finish, including the eviction loop, and no I/O
// happens while it is held. An evict handler registered with
// WithEvictHandler runs after the lock is released.
package evictbuffer
