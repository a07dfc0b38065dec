// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds and classifies the worker's network I/O.
//
// HTTP bodies from the local app and the flush endpoint are read
// through ReadBody and DrainBody so a misbehaving peer cannot make the
// worker allocate without limit. IsExpectedCloseError separates a
// gateway that hung up from a connection that failed.
package netutil

import (
	"errors"
	"fmt"
	"io"
)

// ErrBodyTooLarge is returned by ReadBody when the body exceeds its
// limit.
var ErrBodyTooLarge = errors.New("netutil: body exceeds limit")

// drainLimit bounds how much of an unwanted body DrainBody reads.
// Bodies longer than this are abandoned along with their connection.
const drainLimit = 64 << 10

// ReadBody reads all of body if it is at most limit bytes.
func ReadBody(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// DrainBody discards what remains of a response body, up to a small
// limit, so the HTTP client can reuse the connection.
func DrainBody(body io.Reader) {
	io.Copy(io.Discard, io.LimitReader(body, drainLimit))
}
