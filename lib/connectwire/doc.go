// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package connectwire encodes the messages exchanged between a
// bureau-connect worker and its gateway.
//
// Every message travels inside a Message envelope: a Kind plus an
// opaque Payload whose layout depends on the kind. Envelopes and
// payloads use the protobuf wire format (google.golang.org/protobuf's
// protowire), hand-encoded field by field so the package carries no
// generated code. Unknown fields are skipped on decode.
//
// On a stream connection each envelope is one frame: a uvarint length
// followed by that many bytes. Frames larger than MaxFrameSize are
// refused in both directions.
//
// A single request flows through the kinds in this order:
//
//	gateway → worker  KindExecutorRequest  (ExecutorRequest)
//	worker  → gateway KindWorkerRequestAck (RequestAck)
//	worker  → gateway KindWorkerReply      (Reply)
//	gateway → worker  KindWorkerReplyAck   (ReplyAck)
//
// KindHeartbeat flows in both directions with an empty payload.
package connectwire
