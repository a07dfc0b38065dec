// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps credential material out of the Go heap.
//
// The worker's only long-lived secrets are the bearer tokens derived
// from the flush signing keys. [Buffer] stores them in an anonymous
// mmap region that is mlocked (never swapped), marked MADV_DONTDUMP
// (absent from core dumps), and zeroed on Close. The garbage collector
// never sees the region, so it cannot leave stale copies behind when
// it moves objects.
//
// [NewFromBytes] copies a slice in and zeroes the source. [Buffer.String]
// returns a heap copy for the one place a string is unavoidable (an
// HTTP header value); everything else should use [Buffer.Bytes].
//
// Depends on golang.org/x/sys/unix.
package secret
