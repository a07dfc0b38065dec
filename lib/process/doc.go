// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper for worker binaries.
// Fatal is the one place that writes to stderr without the structured
// logger, for errors raised before the logger exists (a bad flag, an
// unreadable config file).
package process
