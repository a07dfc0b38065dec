// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestReadBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr error
	}{
		{name: "under limit", body: "reply", limit: 16},
		{name: "exactly limit", body: "reply", limit: 5},
		{name: "empty", body: "", limit: 5},
		{name: "over limit", body: "reply!", limit: 5, wantErr: ErrBodyTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ReadBody(strings.NewReader(tt.body), tt.limit)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadBody error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && string(data) != tt.body {
				t.Errorf("ReadBody = %q, want %q", data, tt.body)
			}
		})
	}
}

func TestDrainBody(t *testing.T) {
	short := strings.NewReader("leftover")
	DrainBody(short)
	if short.Len() != 0 {
		t.Errorf("short body has %d bytes left, want 0", short.Len())
	}

	long := strings.NewReader(strings.Repeat("x", drainLimit+10))
	DrainBody(long)
	if long.Len() != 10 {
		t.Errorf("long body has %d bytes left, want 10", long.Len())
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading frame: %w", io.EOF), true},
		{"closed pipe", io.ErrClosedPipe, true},
		{"closed conn", &net.OpError{Op: "read", Err: net.ErrClosed}, true},
		{"broken pipe", &net.OpError{Op: "write", Err: syscall.EPIPE}, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, false},
		{"other", errors.New("frame exceeds maximum size"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpectedCloseError(tt.err); got != tt.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
