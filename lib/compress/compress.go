// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress encodes flush request bodies.
//
// A flushed reply is a single protobuf message posted over HTTP, so
// the codecs here produce self-describing streams (LZ4 frame format,
// zstd frames) that a receiver can decode from the Content-Encoding
// header alone. Encode falls back to Tag None when compression would
// not shrink the input; callers must send the tag Encode returns, not
// the one they asked for.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies a compression codec.
type Tag uint8

const (
	// None sends the body as-is.
	None Tag = iota

	// LZ4 is fast with a modest ratio. Good default for mixed
	// reply bodies.
	LZ4

	// Zstd at the default level. Better ratio for JSON-heavy step
	// output at higher CPU cost.
	Zstd
)

// ErrUnknownCodec is returned for codec names and tags this package
// does not implement.
var ErrUnknownCodec = errors.New("compress: unknown codec")

// ErrTooLarge is returned by Decode when the decoded output would
// exceed the caller's limit.
var ErrTooLarge = errors.New("compress: decoded size exceeds limit")

// String returns the configuration name of the tag.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ContentEncoding returns the HTTP Content-Encoding value for the tag.
// None has no header value.
func (tag Tag) ContentEncoding() string {
	if tag == None {
		return ""
	}
	return tag.String()
}

// Parse returns the tag for a configuration name. The empty string is
// None.
func Parse(name string) (Tag, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// ParseContentEncoding returns the tag for an HTTP Content-Encoding
// header value. Absent and "identity" are None.
func ParseContentEncoding(value string) (Tag, error) {
	if value == "identity" {
		return None, nil
	}
	return Parse(value)
}

var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
}

// Encode compresses data with tag. It returns the bytes to send and
// the tag that actually applies to them, which is None when the
// compressed form is not smaller than data. For None the input is
// returned without copying.
func Encode(tag Tag, data []byte) ([]byte, Tag, error) {
	var compressed []byte
	switch tag {
	case None:
		return data, None, nil
	case LZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return nil, 0, fmt.Errorf("compress: lz4: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, 0, fmt.Errorf("compress: lz4: %w", err)
		}
		compressed = buffer.Bytes()
	case Zstd:
		compressed = zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	default:
		return nil, 0, fmt.Errorf("%w: tag %d", ErrUnknownCodec, tag)
	}
	if len(compressed) >= len(data) {
		return data, None, nil
	}
	return compressed, tag, nil
}

// Decode reverses Encode. Output larger than maxSize bytes fails with
// ErrTooLarge without being fully materialized.
func Decode(tag Tag, data []byte, maxSize int) ([]byte, error) {
	var reader io.Reader
	switch tag {
	case None:
		if len(data) > maxSize {
			return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(data), maxSize)
		}
		return data, nil
	case LZ4:
		reader = lz4.NewReader(bytes.NewReader(data))
	case Zstd:
		decoder, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("compress: zstd: %w", err)
		}
		defer decoder.Close()
		reader = decoder
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownCodec, tag)
	}

	decoded, err := io.ReadAll(io.LimitReader(reader, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("compress: %s: %w", tag, err)
	}
	if len(decoded) > maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxSize)
	}
	return decoded, nil
}
