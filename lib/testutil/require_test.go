// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// recorder captures Fatalf instead of stopping the test. Fatalf panics
// so control leaves the helper the way runtime.Goexit would.
type recorder struct {
	message string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.message = fmt.Sprintf(format, args...)
	panic(r)
}

func capture(run func(*recorder)) (message string) {
	r := &recorder{}
	defer func() {
		if recovered := recover(); recovered != nil && recovered != r {
			panic(recovered)
		}
		message = r.message
	}()
	run(r)
	return ""
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan string, 1)
	ch <- "reply"
	if got := RequireReceive(t, ch, time.Second, "waiting"); got != "reply" {
		t.Fatalf("RequireReceive = %q, want reply", got)
	}

	message := capture(func(r *recorder) {
		RequireReceive(r, make(chan int), time.Millisecond, "waiting for %s", "ack")
	})
	if !strings.Contains(message, "waiting for ack") {
		t.Errorf("timeout message = %q", message)
	}

	closed := make(chan int)
	close(closed)
	message = capture(func(r *recorder) {
		RequireReceive(r, closed, time.Second)
	})
	if !strings.Contains(message, "channel closed") {
		t.Errorf("closed message = %q", message)
	}
}

func TestRequireClosed(t *testing.T) {
	done := make(chan struct{})
	close(done)
	RequireClosed(t, done, time.Second)

	message := capture(func(r *recorder) {
		RequireClosed(r, make(chan struct{}), time.Millisecond, "shutdown")
	})
	if !strings.Contains(message, "shutdown") {
		t.Errorf("timeout message = %q", message)
	}
}

func TestUniqueID(t *testing.T) {
	first, second := UniqueID("req"), UniqueID("req")
	if first == second || !strings.HasPrefix(first, "req-") {
		t.Errorf("UniqueID returned %q then %q", first, second)
	}
}
