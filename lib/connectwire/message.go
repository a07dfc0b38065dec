// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package connectwire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind identifies the payload type carried by a Message.
type Kind int32

const (
	KindUnspecified      Kind = 0
	KindExecutorRequest  Kind = 1
	KindWorkerRequestAck Kind = 2
	KindWorkerReply      Kind = 3
	KindWorkerReplyAck   Kind = 4
	KindHeartbeat        Kind = 5

	KindWorkerRequestExtendLease    Kind = 6
	KindWorkerRequestExtendLeaseAck Kind = 7
)

func (k Kind) String() string {
	switch k {
	case KindExecutorRequest:
		return "executor_request"
	case KindWorkerRequestAck:
		return "worker_request_ack"
	case KindWorkerReply:
		return "worker_reply"
	case KindWorkerReplyAck:
		return "worker_reply_ack"
	case KindHeartbeat:
		return "heartbeat"
	case KindWorkerRequestExtendLease:
		return "worker_request_extend_lease"
	case KindWorkerRequestExtendLeaseAck:
		return "worker_request_extend_lease_ack"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// Message is the envelope for every frame.
type Message struct {
	Kind    Kind
	Payload []byte
}

// Marshal encodes the envelope.
func (m Message) Marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(m.Kind))
	b = appendBytesField(b, 2, m.Payload)
	return b
}

// UnmarshalMessage decodes an envelope.
func UnmarshalMessage(data []byte) (Message, error) {
	var m Message
	err := consumeFields(data, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			m.Kind = Kind(f.varint)
		case 2:
			m.Payload = f.bytes
		}
		return nil
	})
	if err != nil {
		return Message{}, fmt.Errorf("connectwire: decoding message: %w", err)
	}
	return m, nil
}

// ExecutorRequest asks the worker to run one step of a function.
// LeaseID names the gateway's lease on the request; the worker renews
// it with ExtendLease for as long as the step runs.
type ExecutorRequest struct {
	RequestID    string
	AppName      string
	FunctionSlug string
	StepID       string
	RunID        string
	Payload      []byte
	LeaseID      string
}

// Marshal encodes the request.
func (r ExecutorRequest) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, r.RequestID)
	b = appendStringField(b, 2, r.AppName)
	b = appendStringField(b, 3, r.FunctionSlug)
	b = appendStringField(b, 4, r.StepID)
	b = appendStringField(b, 5, r.RunID)
	b = appendBytesField(b, 6, r.Payload)
	b = appendStringField(b, 7, r.LeaseID)
	return b
}

// UnmarshalExecutorRequest decodes an executor request payload.
func UnmarshalExecutorRequest(data []byte) (ExecutorRequest, error) {
	var r ExecutorRequest
	err := consumeFields(data, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			r.RequestID = string(f.bytes)
		case 2:
			r.AppName = string(f.bytes)
		case 3:
			r.FunctionSlug = string(f.bytes)
		case 4:
			r.StepID = string(f.bytes)
		case 5:
			r.RunID = string(f.bytes)
		case 6:
			r.Payload = f.bytes
		case 7:
			r.LeaseID = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return ExecutorRequest{}, fmt.Errorf("connectwire: decoding executor request: %w", err)
	}
	return r, nil
}

// RequestAck tells the gateway the worker has taken a request.
type RequestAck struct {
	RequestID    string
	AppName      string
	FunctionSlug string
	StepID       string
}

// Marshal encodes the ack.
func (a RequestAck) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, a.RequestID)
	b = appendStringField(b, 2, a.AppName)
	b = appendStringField(b, 3, a.FunctionSlug)
	b = appendStringField(b, 4, a.StepID)
	return b
}

// UnmarshalRequestAck decodes a request ack payload.
func UnmarshalRequestAck(data []byte) (RequestAck, error) {
	var a RequestAck
	err := consumeFields(data, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			a.RequestID = string(f.bytes)
		case 2:
			a.AppName = string(f.bytes)
		case 3:
			a.FunctionSlug = string(f.bytes)
		case 4:
			a.StepID = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return RequestAck{}, fmt.Errorf("connectwire: decoding request ack: %w", err)
	}
	return a, nil
}

// Reply carries the result of one executor request. The encoded form
// is what the worker buffers until the gateway acknowledges it, and
// what the flusher posts when it never does.
type Reply struct {
	RequestID  string
	AppName    string
	Status     ReplyStatus
	Body       []byte
	NoRetry    bool
	RetryAfter string
}

// Marshal encodes the reply.
func (r Reply) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, r.RequestID)
	b = appendStringField(b, 2, r.AppName)
	b = appendVarintField(b, 3, uint64(r.Status))
	b = appendBytesField(b, 4, r.Body)
	if r.NoRetry {
		b = appendVarintField(b, 5, 1)
	}
	b = appendStringField(b, 6, r.RetryAfter)
	return b
}

// UnmarshalReply decodes a reply payload.
func UnmarshalReply(data []byte) (Reply, error) {
	var r Reply
	err := consumeFields(data, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			r.RequestID = string(f.bytes)
		case 2:
			r.AppName = string(f.bytes)
		case 3:
			r.Status = ReplyStatus(f.varint)
		case 4:
			r.Body = f.bytes
		case 5:
			r.NoRetry = f.varint != 0
		case 6:
			r.RetryAfter = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return Reply{}, fmt.Errorf("connectwire: decoding reply: %w", err)
	}
	return r, nil
}

// ReplyAck tells the worker the gateway has a reply and it may be
// dropped from the buffer.
type ReplyAck struct {
	RequestID string
}

// Marshal encodes the ack.
func (a ReplyAck) Marshal() []byte {
	return appendStringField(nil, 1, a.RequestID)
}

// UnmarshalReplyAck decodes a reply ack payload.
func UnmarshalReplyAck(data []byte) (ReplyAck, error) {
	var a ReplyAck
	err := consumeFields(data, func(num protowire.Number, f field) error {
		if num == 1 {
			a.RequestID = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return ReplyAck{}, fmt.Errorf("connectwire: decoding reply ack: %w", err)
	}
	return a, nil
}

// ExtendLease asks the gateway to renew the lease on a request the
// worker is still executing.
type ExtendLease struct {
	RequestID    string
	FunctionSlug string
	StepID       string
	RunID        string
	LeaseID      string
}

// Marshal encodes the extension request.
func (e ExtendLease) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, e.RequestID)
	b = appendStringField(b, 2, e.FunctionSlug)
	b = appendStringField(b, 3, e.StepID)
	b = appendStringField(b, 4, e.RunID)
	b = appendStringField(b, 5, e.LeaseID)
	return b
}

// UnmarshalExtendLease decodes an extension request payload.
func UnmarshalExtendLease(data []byte) (ExtendLease, error) {
	var e ExtendLease
	err := consumeFields(data, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			e.RequestID = string(f.bytes)
		case 2:
			e.FunctionSlug = string(f.bytes)
		case 3:
			e.StepID = string(f.bytes)
		case 4:
			e.RunID = string(f.bytes)
		case 5:
			e.LeaseID = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return ExtendLease{}, fmt.Errorf("connectwire: decoding extend lease: %w", err)
	}
	return e, nil
}

// ExtendLeaseAck answers an ExtendLease. NewLeaseID replaces the lease
// id for the next extension; an empty NewLeaseID means the lease could
// not be renewed and the worker no longer owns the request.
type ExtendLeaseAck struct {
	RequestID  string
	NewLeaseID string
}

// Marshal encodes the ack.
func (a ExtendLeaseAck) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, a.RequestID)
	b = appendStringField(b, 2, a.NewLeaseID)
	return b
}

// UnmarshalExtendLeaseAck decodes an extension ack payload.
func UnmarshalExtendLeaseAck(data []byte) (ExtendLeaseAck, error) {
	var a ExtendLeaseAck
	err := consumeFields(data, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			a.RequestID = string(f.bytes)
		case 2:
			a.NewLeaseID = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return ExtendLeaseAck{}, fmt.Errorf("connectwire: decoding extend lease ack: %w", err)
	}
	return a, nil
}
