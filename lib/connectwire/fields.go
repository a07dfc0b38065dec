// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package connectwire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// field is one decoded protobuf field. Only the member matching the
// wire type is set.
type field struct {
	varint uint64
	bytes  []byte
}

// consumeFields walks every field in data and calls visit with the
// varint and length-delimited ones. Fixed-width and group fields are
// skipped. Byte slices passed to visit are copies.
func consumeFields(data []byte, visit func(protowire.Number, field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		var f field
		switch typ {
		case protowire.VarintType:
			value, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			f.varint = value
			data = data[n:]
		case protowire.BytesType:
			value, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			f.bytes = append([]byte(nil), value...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		if err := visit(num, f); err != nil {
			return err
		}
	}
	return nil
}

// Zero values are omitted, matching proto3 encoding.

func appendVarintField(b []byte, num protowire.Number, value uint64) []byte {
	if value == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, value)
}

func appendStringField(b []byte, num protowire.Number, value string) []byte {
	if value == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, value)
}

func appendBytesField(b []byte, num protowire.Number, value []byte) []byte {
	if len(value) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, value)
}
