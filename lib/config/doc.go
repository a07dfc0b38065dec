// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads bureau-connect-worker configuration.
//
// Configuration comes from a single file named by either the
// BUREAU_CONNECT_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no file search.
// YAML is the primary format; files ending in .json or .jsonc are read
// as JSON with comments and trailing commas.
//
// The file may carry environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches.
//
// After loading, ${VAR} and ${VAR:-default} patterns are expanded in
// addresses, URLs, and signing keys. This is how the signing key
// reaches the worker without being written into the file:
//
//	flush:
//	  signing_key: ${BUREAU_SIGNING_KEY}
//
// No other environment variables override config values.
package config
