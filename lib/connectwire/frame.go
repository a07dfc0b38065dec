// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package connectwire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize is the largest envelope either side will send or
// accept. Replies larger than this cannot reach the gateway.
const MaxFrameSize = 5 << 20

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("connectwire: frame exceeds maximum size")

// WriteFrame writes one length-prefixed envelope.
func WriteFrame(w io.Writer, message Message) error {
	payload := message.Marshal()
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	frame := protowire.AppendVarint(make([]byte, 0, len(payload)+binary.MaxVarintLen32), uint64(len(payload)))
	frame = append(frame, payload...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("connectwire: writing %s frame: %w", message.Kind, err)
	}
	return nil
}

// ReadFrame reads one length-prefixed envelope. It returns io.EOF only
// when the stream ends cleanly between frames.
func ReadFrame(r *bufio.Reader) (Message, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, fmt.Errorf("connectwire: reading frame length: %w", err)
	}
	if length > MaxFrameSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("connectwire: reading frame body: %w", err)
	}
	return UnmarshalMessage(payload)
}

// Digest returns the hex BLAKE3 digest of data. Flushed replies carry
// it so the receiver can detect truncation or corruption after
// decompression.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
