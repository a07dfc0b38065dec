// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service holds the local surfaces a bureau-connect worker
// exposes to operators: a CBOR request/response socket, an HTTP server
// for metrics, and the shared logger constructor.
//
// The socket protocol is one request per connection. A client writes a
// single CBOR map with an "action" key plus action-specific fields;
// the server replies with a [Response] envelope and closes the
// connection. [ServiceClient] implements the client side:
//
//	client := service.NewServiceClient("/run/bureau/connect-worker.sock")
//	var status StatusResponse
//	err := client.Call(ctx, "status", nil, &status)
//
// Failures reported by the server come back as *[ServiceError]; dial
// and decode failures are ordinary errors.
package service
