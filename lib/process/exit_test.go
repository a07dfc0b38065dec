// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"testing"
)

func TestFatal(t *testing.T) {
	var code int
	original := exit
	exit = func(status int) { code = status }
	t.Cleanup(func() { exit = original })

	var output bytes.Buffer
	fatal(&output, errors.New("invalid config: buffer.capacity_bytes must be positive"))

	if code != 1 {
		t.Errorf("exit status = %d, want 1", code)
	}
	if got, want := output.String(), "error: invalid config: buffer.capacity_bytes must be positive\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
