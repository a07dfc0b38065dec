// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build identity of bureau-connect
// binaries.
//
// [Version], [GitCommit], [GitDirty], and [BuildTime] are injected with
// -ldflags -X at build time and keep their placeholder values in
// development builds and tests:
//
//	go build -ldflags "-X github.com/bureau-foundation/bureau-connect/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [Info] is the --version string. [UserAgent] is sent on every HTTP
// request the worker makes, so the receiving side can tell worker
// builds apart.
package version
