// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package flusher delivers replies the gateway never acknowledged.
//
// A worker sends each reply over its gateway connection and keeps a
// copy in an eviction buffer until the gateway acks it. If the ack
// does not come (the connection dropped, the gateway restarted) the
// reply would be lost. The flusher sweeps the buffer on a fixed
// interval, POSTs every reply older than its TTL to the flush endpoint
// over HTTP, and removes it from the buffer.
//
// Each reply gets exactly one attempt. It is removed whether or not
// the POST succeeds, so a reply the endpoint rejects is not retried
// forever; the failure is logged and counted.
//
// Requests authenticate with the hashed signing key as a bearer token.
// When the primary key is rejected with 401 or 403 and a fallback key
// is configured, the request is repeated once with the fallback, which
// keeps flushes working across a key rotation.
package flusher
