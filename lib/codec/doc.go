// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the single CBOR configuration used by
// bureau-connect.
//
// Two formats meet in the worker. The gateway wire protocol is
// protobuf-encoded (see lib/connectwire) because the gateway defines
// it. Everything the worker owns is CBOR: the status socket protocol
// and the buffer snapshots returned by the dump action.
//
// For whole values:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For connections:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types serialized only as CBOR carry `cbor` struct tags. Types that
// the CLI also prints as JSON carry `json` tags only; fxamacker/cbor
// falls back to them when no `cbor` tag is present.
package codec
