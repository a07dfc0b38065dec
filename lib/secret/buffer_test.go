// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewFromBytesMovesSource(t *testing.T) {
	source := []byte("5e884898da28047151d0e56f8dc62927")
	want := string(source)

	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !bytes.Equal(buffer.Bytes(), []byte(want)) {
		t.Error("Bytes() differs from the source")
	}
	if buffer.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", buffer.Len(), len(want))
	}
	if !bytes.Equal(source, make([]byte, len(source))) {
		t.Error("source was not zeroed")
	}
}

func TestNewFromBytesRejectsEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("NewFromBytes(nil) = %v, want ErrEmpty", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	buffer, err := NewFromBytes([]byte("token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", buffer.Len())
	}
}

func TestReadAfterClosePanics(t *testing.T) {
	buffer, err := NewFromBytes([]byte("token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	buffer.Close()

	for name, read := range map[string]func(){
		"Bytes":  func() { buffer.Bytes() },
		"String": func() { _ = buffer.String() },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s after Close did not panic", name)
				}
			}()
			read()
		})
	}
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3}
	Zero(data)
	if !bytes.Equal(data, []byte{0, 0, 0}) {
		t.Errorf("Zero left %v", data)
	}
}
