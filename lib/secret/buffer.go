// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrEmpty is returned when asked to protect zero bytes.
var ErrEmpty = errors.New("secret: empty secret")

// Buffer is a fixed-size region of locked, non-dumpable memory outside
// the Go heap. Do not copy a Buffer. Reads after Close panic.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	closed bool
}

// NewFromBytes moves source into a new Buffer: the bytes are copied
// into protected memory and source is zeroed.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, ErrEmpty
	}
	region, err := allocate(len(source))
	if err != nil {
		return nil, err
	}
	copy(region, source)
	Zero(source)
	return &Buffer{region: region}, nil
}

// allocate maps size bytes of anonymous memory, locks it, and excludes
// it from core dumps. The region is zero-filled.
func allocate(size int) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return region, nil
}

// Bytes returns the protected bytes. The slice aliases the mapped
// region and is invalid after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	return b.region
}

// String returns a heap copy of the secret.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	return string(b.region)
}

// Len returns the secret's length, or zero after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.region)
}

// Close zeroes and releases the region. Idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.region)
	err := errors.Join(unix.Munlock(b.region), unix.Munmap(b.region))
	b.region = nil
	if err != nil {
		return fmt.Errorf("secret: releasing region: %w", err)
	}
	return nil
}

func (b *Buffer) mustBeOpen() {
	if b.closed {
		panic("secret: read from closed buffer")
	}
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}
