// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package connectwire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestExecutorRequestThroughFrame(t *testing.T) {
	request := ExecutorRequest{
		RequestID:    "req-1",
		AppName:      "billing",
		FunctionSlug: "billing-charge",
		StepID:       "step-1",
		RunID:        "run-9",
		Payload:      []byte(`{"event":{"name":"charge"}}`),
		LeaseID:      "lease-1",
	}

	var stream bytes.Buffer
	if err := WriteFrame(&stream, Message{Kind: KindExecutorRequest, Payload: request.Marshal()}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := WriteFrame(&stream, Message{Kind: KindHeartbeat}); err != nil {
		t.Fatalf("WriteFrame heartbeat: %v", err)
	}

	reader := bufio.NewReader(&stream)
	message, err := ReadFrame(reader)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if message.Kind != KindExecutorRequest {
		t.Fatalf("kind = %v, want %v", message.Kind, KindExecutorRequest)
	}
	decoded, err := UnmarshalExecutorRequest(message.Payload)
	if err != nil {
		t.Fatalf("UnmarshalExecutorRequest: %v", err)
	}
	if decoded.RequestID != request.RequestID || decoded.FunctionSlug != request.FunctionSlug ||
		decoded.AppName != request.AppName || decoded.StepID != request.StepID ||
		decoded.RunID != request.RunID || decoded.LeaseID != request.LeaseID ||
		!bytes.Equal(decoded.Payload, request.Payload) {
		t.Errorf("decoded = %+v, want %+v", decoded, request)
	}

	heartbeat, err := ReadFrame(reader)
	if err != nil {
		t.Fatalf("ReadFrame heartbeat: %v", err)
	}
	if heartbeat.Kind != KindHeartbeat || len(heartbeat.Payload) != 0 {
		t.Errorf("heartbeat = %+v", heartbeat)
	}

	if _, err := ReadFrame(reader); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame at end = %v, want io.EOF", err)
	}
}

func TestReplyFields(t *testing.T) {
	reply := Reply{
		RequestID:  "req-2",
		AppName:    "billing",
		Status:     StatusNotCompleted,
		Body:       []byte(`[{"op":"step"}]`),
		NoRetry:    true,
		RetryAfter: "30s",
	}
	decoded, err := UnmarshalReply(reply.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalReply: %v", err)
	}
	if decoded.RequestID != reply.RequestID || decoded.Status != reply.Status ||
		!decoded.NoRetry || decoded.RetryAfter != "30s" || !bytes.Equal(decoded.Body, reply.Body) {
		t.Errorf("decoded = %+v, want %+v", decoded, reply)
	}
}

func TestExtendLeaseFields(t *testing.T) {
	extend := ExtendLease{
		RequestID:    "req-5",
		FunctionSlug: "billing-charge",
		StepID:       "step-1",
		RunID:        "run-9",
		LeaseID:      "lease-2",
	}
	decoded, err := UnmarshalExtendLease(extend.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalExtendLease: %v", err)
	}
	if decoded != extend {
		t.Errorf("decoded = %+v, want %+v", decoded, extend)
	}

	ack, err := UnmarshalExtendLeaseAck(ExtendLeaseAck{RequestID: "req-5"}.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalExtendLeaseAck: %v", err)
	}
	if ack.RequestID != "req-5" || ack.NewLeaseID != "" {
		t.Errorf("ack without a new lease = %+v", ack)
	}
}

func TestZeroValuesAreOmitted(t *testing.T) {
	if encoded := (Reply{}).Marshal(); len(encoded) != 0 {
		t.Errorf("empty Reply encoded to %d bytes, want 0", len(encoded))
	}
}

func TestUnknownFieldsSkipped(t *testing.T) {
	encoded := ReplyAck{RequestID: "req-3"}.Marshal()
	encoded = protowire.AppendTag(encoded, 42, protowire.Fixed64Type)
	encoded = protowire.AppendFixed64(encoded, 7)
	encoded = protowire.AppendTag(encoded, 43, protowire.BytesType)
	encoded = protowire.AppendString(encoded, "future")

	ack, err := UnmarshalReplyAck(encoded)
	if err != nil {
		t.Fatalf("UnmarshalReplyAck: %v", err)
	}
	if ack.RequestID != "req-3" {
		t.Errorf("RequestID = %q, want req-3", ack.RequestID)
	}
}

func TestTruncatedPayloadRejected(t *testing.T) {
	encoded := RequestAck{RequestID: "req-4", AppName: "billing"}.Marshal()
	if _, err := UnmarshalRequestAck(encoded[:len(encoded)-2]); err == nil {
		t.Error("truncated payload decoded without error")
	}
}

func TestFrameTooLarge(t *testing.T) {
	var stream bytes.Buffer
	err := WriteFrame(&stream, Message{Kind: KindWorkerReply, Payload: make([]byte, MaxFrameSize)})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("WriteFrame oversize = %v, want ErrFrameTooLarge", err)
	}
	if stream.Len() != 0 {
		t.Errorf("oversize frame wrote %d bytes", stream.Len())
	}

	header := protowire.AppendVarint(nil, MaxFrameSize+1)
	_, err = ReadFrame(bufio.NewReader(bytes.NewReader(header)))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("ReadFrame oversize = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	frame := protowire.AppendVarint(nil, 10)
	frame = append(frame, 1, 2, 3)
	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(frame)))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadFrame truncated body = %v, want unexpected EOF", err)
	}
}

func TestStatusFromHTTP(t *testing.T) {
	tests := []struct {
		code     int
		want     ReplyStatus
		expected bool
	}{
		{http.StatusOK, StatusDone, true},
		{http.StatusPartialContent, StatusNotCompleted, true},
		{http.StatusInternalServerError, StatusError, true},
		{http.StatusBadRequest, StatusError, false},
		{http.StatusTeapot, StatusError, false},
	}
	for _, test := range tests {
		got, expected := StatusFromHTTP(test.code)
		if got != test.want || expected != test.expected {
			t.Errorf("StatusFromHTTP(%d) = (%v, %v), want (%v, %v)",
				test.code, got, expected, test.want, test.expected)
		}
	}
}

func TestKindString(t *testing.T) {
	if got := KindWorkerReplyAck.String(); got != "worker_reply_ack" {
		t.Errorf("String() = %q", got)
	}
	if got := KindWorkerRequestExtendLeaseAck.String(); got != "worker_request_extend_lease_ack" {
		t.Errorf("String() = %q", got)
	}
	if got := Kind(99).String(); got != "kind(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestDigest(t *testing.T) {
	first := Digest([]byte("reply"))
	if len(first) != 64 || strings.Trim(first, "0123456789abcdef") != "" {
		t.Fatalf("Digest = %q, want 64 hex characters", first)
	}
	if Digest([]byte("reply")) != first {
		t.Error("Digest is not deterministic")
	}
	if Digest([]byte("reply!")) == first {
		t.Error("different payloads produced the same digest")
	}
}
