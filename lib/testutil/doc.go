// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by bureau-connect tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so a test that hangs fails with a message instead of
// running until the package deadline. They are the only place tests
// touch the wall clock; everything else drives lib/clock's fake.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes and so cannot live under a
// deeply nested t.TempDir().
//
// [UniqueID] returns distinct request ids across a test binary.
package testutil
