// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-connect inspects a running bureau-connect-worker through its
// service socket.
//
//	bureau-connect status            gateway, buffer, and flush counters
//	bureau-connect dump --limit 20   oldest buffered replies (ids, sizes, ages)
//	bureau-connect call status       any action, printed as CBOR diagnostic notation
//
// Every command takes --socket (default: the worker's default socket
// path); status and dump take --json for machine-readable output.
package main
